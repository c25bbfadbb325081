package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

func TestScore_Composition(t *testing.T) {
	vc := domain.ValidationContext{
		Confidence:     0.8,
		Sentiment:      0.5, // normalize -> 0.75
		Completeness:   0.6,
		RiskMultiplier: 1.0,
		Intent:         domain.IntentInterested, // вес 1.0
	}

	// 0.35*0.8 + 0.20*0.75 + 0.25*0.6 + 0.20*1.0 = 0.78
	assert.InDelta(t, 0.78, Score(vc), 1e-9)
}

func TestScore_IntentWeights(t *testing.T) {
	base := domain.ValidationContext{
		Confidence:     0.5,
		Sentiment:      0,
		Completeness:   0.5,
		RiskMultiplier: 1.0,
	}

	base.Intent = domain.IntentQuestion
	// 0.35*0.5 + 0.20*0.5 + 0.25*0.5 + 0.20*0.7 = 0.54
	assert.InDelta(t, 0.54, Score(base), 1e-9)

	base.Intent = domain.IntentUnknown
	// Нераспознанный интент — базовый вес 0.5
	assert.InDelta(t, 0.50, Score(base), 1e-9)
}

func TestScore_RiskMultiplierScales(t *testing.T) {
	vc := domain.ValidationContext{
		Confidence:     1.0,
		Sentiment:      1.0,
		Completeness:   1.0,
		Intent:         domain.IntentInterested,
		RiskMultiplier: 0.5,
	}
	assert.InDelta(t, 0.5, Score(vc), 1e-9)

	vc.RiskMultiplier = 0
	assert.Zero(t, Score(vc))
}

func TestNormalizeSentiment(t *testing.T) {
	assert.Equal(t, 0.0, normalizeSentiment(-1))
	assert.Equal(t, 0.5, normalizeSentiment(0))
	assert.Equal(t, 1.0, normalizeSentiment(1))

	// Выход за диапазон обрезается, а не улетает
	assert.Equal(t, 0.0, normalizeSentiment(-3))
	assert.Equal(t, 1.0, normalizeSentiment(2))
}
