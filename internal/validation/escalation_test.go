package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

type fakeLeads struct {
	lead *domain.Lead
	err  error
}

func (f *fakeLeads) GetLeadByID(_ context.Context, _ string) (*domain.Lead, error) {
	return f.lead, f.err
}

func confidentContext() domain.ValidationContext {
	return domain.ValidationContext{
		LeadID:         "lead-1",
		Kind:           domain.KindContractSend,
		Confidence:     0.9,
		Sentiment:      0.5,
		Completeness:   0.9,
		RiskMultiplier: 1.0,
		Intent:         domain.IntentInterested,
	}
}

func TestEscalator_NoReasonsForCleanContext(t *testing.T) {
	e := NewEscalator(&fakeLeads{lead: &domain.Lead{DealValue: 1000}}, zap.NewNop())

	reasons := e.Evaluate(context.Background(), confidentContext(), domain.ActionThreshold{})

	assert.Empty(t, reasons)
}

func TestEscalator_AdditiveReasons(t *testing.T) {
	// Критерии не обрываются: ревьюер видит все причины разом
	e := NewEscalator(&fakeLeads{}, zap.NewNop())

	vc := confidentContext()
	vc.Confidence = 0.2
	vc.Sentiment = -0.8
	vc.Intent = domain.IntentUnknown

	reasons := e.Evaluate(context.Background(), vc, domain.ActionThreshold{})

	require.Len(t, reasons, 3)
	assert.Contains(t, reasons[0], "confidence")
	assert.Contains(t, reasons[1], "sentiment")
	assert.Contains(t, reasons[2], "intent")
}

func TestEscalator_ConfidenceBoundary(t *testing.T) {
	e := NewEscalator(&fakeLeads{}, zap.NewNop())

	vc := confidentContext()
	vc.Confidence = 0.5 // Ровно на пороге — не эскалируем
	assert.Empty(t, e.Evaluate(context.Background(), vc, domain.ActionThreshold{}))

	vc.Confidence = 0.49
	assert.Len(t, e.Evaluate(context.Background(), vc, domain.ActionThreshold{}), 1)
}

func TestEscalator_HighValueDeal(t *testing.T) {
	valueOver := 50000.0
	th := domain.ActionThreshold{EscalateValueOver: &valueOver}

	e := NewEscalator(&fakeLeads{lead: &domain.Lead{DealValue: 75000}}, zap.NewNop())
	reasons := e.Evaluate(context.Background(), confidentContext(), th)
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "deal value")

	// Вид без порога не смотрит на сумму вовсе
	e = NewEscalator(&fakeLeads{lead: &domain.Lead{DealValue: 75000}}, zap.NewNop())
	assert.Empty(t, e.Evaluate(context.Background(), confidentContext(), domain.ActionThreshold{}))

	// Сумма под порогом
	e = NewEscalator(&fakeLeads{lead: &domain.Lead{DealValue: 49999}}, zap.NewNop())
	assert.Empty(t, e.Evaluate(context.Background(), confidentContext(), th))
}

func TestEscalator_ValueLookupFailureEscalates(t *testing.T) {
	// Не выяснили сумму — зовём человека, а не пропускаем молча
	valueOver := 50000.0
	th := domain.ActionThreshold{EscalateValueOver: &valueOver}

	e := NewEscalator(&fakeLeads{err: errors.New("pg down")}, zap.NewNop())
	reasons := e.Evaluate(context.Background(), confidentContext(), th)
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "could not be verified")

	e = NewEscalator(&fakeLeads{lead: nil}, zap.NewNop())
	reasons = e.Evaluate(context.Background(), confidentContext(), th)
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "not found")
}
