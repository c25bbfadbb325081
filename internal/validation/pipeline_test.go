package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// fakeHistory — управляемые скользящие окна журнала решений
type fakeHistory struct {
	perLead   int
	perKind   int
	total     int
	lastAt    *time.Time
	err       error
	lastAtErr error
}

func (f *fakeHistory) CountApprovedForLeadLastHour(_ context.Context, _ string, _ domain.ActionKind) (int, error) {
	return f.perLead, f.err
}

func (f *fakeHistory) CountApprovedKindLastHour(_ context.Context, _ domain.ActionKind) (int, error) {
	return f.perKind, f.err
}

func (f *fakeHistory) CountApprovedTotalLastHour(_ context.Context) (int, error) {
	return f.total, f.err
}

func (f *fakeHistory) LastApprovedAt(_ context.Context, _ string, _ domain.ActionKind) (*time.Time, error) {
	return f.lastAt, f.lastAtErr
}

type fakeOptOuts struct {
	optedOut bool
	err      error
}

func (f *fakeOptOuts) IsLeadOptedOut(_ context.Context, _ string) (bool, error) {
	return f.optedOut, f.err
}

// fakeGates — все гейты открыты, кроме перечисленных
type fakeGates struct {
	closed map[string]bool
}

func (f *fakeGates) IsOpen(capability string) bool {
	return capability != "" && !f.closed[capability]
}

func newTestPipeline(h *fakeHistory, o *fakeOptOuts, g *fakeGates, now time.Time) *Pipeline {
	p := NewPipeline(h, o, g, time.UTC, zap.NewNop())
	p.now = func() time.Time { return now }
	return p
}

// noon — будний полдень UTC: внутри любого окна отправки из дефолтов
var noon = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func passingContext() domain.ValidationContext {
	return domain.ValidationContext{
		LeadID:         "lead-1",
		Kind:           domain.KindMessageSend,
		Confidence:     0.9,
		Sentiment:      0.4,
		Completeness:   0.8,
		RiskMultiplier: 1.0,
		Intent:         domain.IntentInterested,
	}
}

func messageThreshold() domain.ActionThreshold {
	th, _ := domain.DefaultThreshold(domain.KindMessageSend)
	return th
}

func resultByName(t *testing.T, results []domain.ValidatorResult, name string) domain.ValidatorResult {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("validator %q missing from results", name)
	return domain.ValidatorResult{}
}

func TestPipeline_AllPass(t *testing.T) {
	p := newTestPipeline(&fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, noon)

	results := p.Run(context.Background(), passingContext(), messageThreshold(), 0)

	require.Len(t, results, 9)
	for _, r := range results {
		assert.True(t, r.Passed, "validator %s failed: %s", r.Name, r.Reason)
	}
}

func TestPipeline_RunsAllValidators_NoShortCircuit(t *testing.T) {
	// Провал первого же порога не должен прятать остальные вердикты
	p := newTestPipeline(&fakeHistory{}, &fakeOptOuts{optedOut: true}, &fakeGates{}, noon)

	vc := passingContext()
	vc.Confidence = 0.1

	results := p.Run(context.Background(), vc, messageThreshold(), 0)

	require.Len(t, results, 9)
	assert.False(t, resultByName(t, results, ValidatorConfidence).Passed)
	assert.False(t, resultByName(t, results, ValidatorOptOut).Passed)
	assert.True(t, resultByName(t, results, ValidatorSentiment).Passed)
}

func TestPipeline_ThresholdFloors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*domain.ValidationContext)
		validator string
	}{
		{"confidence", func(vc *domain.ValidationContext) { vc.Confidence = 0.3 }, ValidatorConfidence},
		{"sentiment", func(vc *domain.ValidationContext) { vc.Sentiment = -0.9 }, ValidatorSentiment},
		{"completeness", func(vc *domain.ValidationContext) { vc.Completeness = 0.1 }, ValidatorCompleteness},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(&fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, noon)
			vc := passingContext()
			tt.mutate(&vc)

			results := p.Run(context.Background(), vc, messageThreshold(), 0)

			r := resultByName(t, results, tt.validator)
			assert.False(t, r.Passed)
			assert.False(t, r.Hard, "порог — мягкий класс, итог hold")
			assert.NotEmpty(t, r.Reason)
		})
	}
}

func TestPipeline_RiskZeroIsHardVeto(t *testing.T) {
	p := newTestPipeline(&fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, noon)

	vc := passingContext()
	vc.RiskMultiplier = 0

	results := p.Run(context.Background(), vc, messageThreshold(), 0)

	r := resultByName(t, results, ValidatorRisk)
	assert.False(t, r.Passed)
	assert.True(t, r.Hard)
}

func TestPipeline_PerLeadRateLimit(t *testing.T) {
	// Лимит 1 на лида: одно одобренное решение в окне — второе блокируется
	p := newTestPipeline(&fakeHistory{perLead: 1}, &fakeOptOuts{}, &fakeGates{}, noon)

	th := messageThreshold()
	th.MaxPerLeadHour = 1

	results := p.Run(context.Background(), passingContext(), th, 0)

	r := resultByName(t, results, ValidatorRateLimit)
	assert.False(t, r.Passed)
	assert.False(t, r.Hard)
	assert.Contains(t, r.Reason, "per-lead limit")
}

func TestPipeline_GlobalKindRateLimit(t *testing.T) {
	p := newTestPipeline(&fakeHistory{perKind: 20}, &fakeOptOuts{}, &fakeGates{}, noon)

	results := p.Run(context.Background(), passingContext(), messageThreshold(), 0)

	r := resultByName(t, results, ValidatorRateLimit)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Reason, "global limit")
}

func TestPipeline_HourlyBudget(t *testing.T) {
	p := newTestPipeline(&fakeHistory{total: 50}, &fakeOptOuts{}, &fakeGates{}, noon)

	results := p.Run(context.Background(), passingContext(), messageThreshold(), 50)

	r := resultByName(t, results, ValidatorRateLimit)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Reason, "budget")

	// Нулевой бюджет = бюджет не задан
	p = newTestPipeline(&fakeHistory{total: 50}, &fakeOptOuts{}, &fakeGates{}, noon)
	results = p.Run(context.Background(), passingContext(), messageThreshold(), 0)
	assert.True(t, resultByName(t, results, ValidatorRateLimit).Passed)
}

func TestPipeline_RateHistoryErrorFailsClosed(t *testing.T) {
	p := newTestPipeline(&fakeHistory{err: errors.New("pg down")}, &fakeOptOuts{}, &fakeGates{}, noon)

	results := p.Run(context.Background(), passingContext(), messageThreshold(), 0)

	r := resultByName(t, results, ValidatorRateLimit)
	assert.False(t, r.Passed, "недоступная история не открывает лимит")
}

func TestPipeline_OptOutIsHardBlock(t *testing.T) {
	p := newTestPipeline(&fakeHistory{}, &fakeOptOuts{optedOut: true}, &fakeGates{}, noon)

	results := p.Run(context.Background(), passingContext(), messageThreshold(), 0)

	r := resultByName(t, results, ValidatorOptOut)
	assert.False(t, r.Passed)
	assert.True(t, r.Hard)
}

func TestPipeline_OptOutLookupErrorFailsClosed(t *testing.T) {
	p := newTestPipeline(&fakeHistory{}, &fakeOptOuts{err: errors.New("pg down")}, &fakeGates{}, noon)

	results := p.Run(context.Background(), passingContext(), messageThreshold(), 0)

	r := resultByName(t, results, ValidatorOptOut)
	assert.False(t, r.Passed)
	assert.True(t, r.Hard)
}

func TestPipeline_Cooldown(t *testing.T) {
	th := messageThreshold()
	require.Equal(t, 240, th.CooldownMinutes)
	cooldown := time.Duration(th.CooldownMinutes) * time.Minute

	tests := []struct {
		name     string
		approved time.Time
		passes   bool
	}{
		{"внутри окна", noon.Add(-time.Hour), false},
		{"за минуту до границы", noon.Add(-cooldown + time.Minute), false},
		{"ровно на границе", noon.Add(-cooldown), true},
		{"после границы", noon.Add(-cooldown - time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.approved
			p := newTestPipeline(&fakeHistory{lastAt: &at}, &fakeOptOuts{}, &fakeGates{}, noon)

			results := p.Run(context.Background(), passingContext(), th, 0)

			r := resultByName(t, results, ValidatorCooldown)
			assert.Equal(t, tt.passes, r.Passed, r.Reason)
			if !tt.passes {
				assert.Contains(t, r.Reason, "cooldown active")
			}
		})
	}
}

func TestPipeline_CooldownNoHistory(t *testing.T) {
	p := newTestPipeline(&fakeHistory{lastAt: nil}, &fakeOptOuts{}, &fakeGates{}, noon)

	results := p.Run(context.Background(), passingContext(), messageThreshold(), 0)

	assert.True(t, resultByName(t, results, ValidatorCooldown).Passed)
}

func TestPipeline_SendWindow(t *testing.T) {
	night := time.Date(2026, 3, 4, 3, 0, 0, 0, time.UTC)
	p := newTestPipeline(&fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, night)

	results := p.Run(context.Background(), passingContext(), messageThreshold(), 0)

	r := resultByName(t, results, ValidatorSendWindow)
	assert.False(t, r.Passed)
	assert.False(t, r.Hard)
	assert.Contains(t, r.Reason, "outside send window")
}

func TestPipeline_ClosedGateIsHardBlock(t *testing.T) {
	p := newTestPipeline(&fakeHistory{}, &fakeOptOuts{},
		&fakeGates{closed: map[string]bool{domain.CapabilityMessaging: true}}, noon)

	results := p.Run(context.Background(), passingContext(), messageThreshold(), 0)

	r := resultByName(t, results, ValidatorGate)
	assert.False(t, r.Passed)
	assert.True(t, r.Hard)
}
