package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/audit"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

type fakeGate struct {
	decision domain.GateDecision
}

func (f *fakeGate) CanExecute(_ context.Context, _ domain.ActionKind) domain.GateDecision {
	return f.decision
}

type fakeThresholds struct{}

func (fakeThresholds) Effective(_ context.Context, kind domain.ActionKind) domain.ActionThreshold {
	th, _ := domain.DefaultThreshold(kind)
	return th
}

type fakeFlags struct {
	flags domain.AutonomyFlags
}

func (f *fakeFlags) Current(_ context.Context) domain.AutonomyFlags { return f.flags }

type captureSink struct {
	events []audit.EvaluationEvent
}

func (c *captureSink) Record(e audit.EvaluationEvent) { c.events = append(c.events, e) }

func allowedGate() *fakeGate {
	return &fakeGate{decision: domain.GateDecision{
		Allowed:      true,
		Reason:       "all gate checks passed",
		LevelCurrent: domain.LevelAutonomous,
	}}
}

func newTestGovernor(gate *fakeGate, h *fakeHistory, o *fakeOptOuts, g *fakeGates, leads *fakeLeads, sink audit.EventSink) *Governor {
	logger := zap.NewNop()
	pipeline := newTestPipeline(h, o, g, noon)
	escalator := NewEscalator(leads, logger)
	return NewGovernor(gate, fakeThresholds{}, &fakeFlags{}, pipeline, escalator, sink, nil, logger)
}

func TestGovernor_ExecuteWhenAllClean(t *testing.T) {
	gov := newTestGovernor(allowedGate(), &fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, &fakeLeads{}, nil)

	res := gov.RunFull(context.Background(), passingContext())

	assert.Equal(t, domain.RecommendExecute, res.Recommendation)
	assert.True(t, res.CanExecute)
	assert.False(t, res.Escalate)
	assert.Empty(t, res.Failed)
	assert.Len(t, res.Passed, 9)
	assert.Greater(t, res.Score, 0.0)
}

func TestGovernor_GateDeniedIsBlock(t *testing.T) {
	gate := &fakeGate{decision: domain.GateDecision{
		Allowed: false,
		Reason:  "autonomy master flag is disabled",
	}}
	gov := newTestGovernor(gate, &fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, &fakeLeads{}, nil)

	res := gov.RunFull(context.Background(), passingContext())

	assert.Equal(t, domain.RecommendBlock, res.Recommendation)
	assert.False(t, res.CanExecute)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "policy_gate", res.Failed[0].Name)
	assert.True(t, res.Failed[0].Hard)
	assert.Contains(t, res.Failed[0].Reason, "master flag")
}

func TestGovernor_HardFailureBeatsEverything(t *testing.T) {
	// Opt-out (hard) + условия эскалации одновременно: побеждает block
	gov := newTestGovernor(allowedGate(), &fakeHistory{}, &fakeOptOuts{optedOut: true}, &fakeGates{}, &fakeLeads{}, nil)

	vc := passingContext()
	vc.Confidence = 0.2 // Заодно и причина эскалации

	res := gov.RunFull(context.Background(), vc)

	assert.Equal(t, domain.RecommendBlock, res.Recommendation)
	assert.False(t, res.CanExecute)
	assert.True(t, res.Escalate, "причины эскалации сохраняются в отчёте")
}

func TestGovernor_ConfirmationRequiredEscalates(t *testing.T) {
	// Чистый прогон, но флаг require_confirmation взведён: вместо execute —
	// очередь эскалаций с понятной причиной
	gate := allowedGate()
	gate.decision.RequiresConfirmation = true
	gov := newTestGovernor(gate, &fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, &fakeLeads{}, nil)

	res := gov.RunFull(context.Background(), passingContext())

	assert.Equal(t, domain.RecommendEscalate, res.Recommendation)
	assert.False(t, res.CanExecute)
	assert.True(t, res.Escalate)
	require.Len(t, res.EscalationReasons, 1)
	assert.Contains(t, res.EscalationReasons[0], "confirmation")
	assert.Empty(t, res.Failed, "валидаторы пройдены, это не hold и не block")
}

func TestGovernor_ConfirmationDoesNotOverrideBlock(t *testing.T) {
	gate := allowedGate()
	gate.decision.RequiresConfirmation = true
	gov := newTestGovernor(gate, &fakeHistory{}, &fakeOptOuts{optedOut: true}, &fakeGates{}, &fakeLeads{}, nil)

	res := gov.RunFull(context.Background(), passingContext())

	assert.Equal(t, domain.RecommendBlock, res.Recommendation, "жёсткое вето старше подтверждения")
	assert.True(t, res.Escalate, "причина подтверждения остаётся в отчёте")
}

func TestGovernor_RiskZeroIsBlock(t *testing.T) {
	gov := newTestGovernor(allowedGate(), &fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, &fakeLeads{}, nil)

	vc := passingContext()
	vc.RiskMultiplier = 0

	res := gov.RunFull(context.Background(), vc)

	assert.Equal(t, domain.RecommendBlock, res.Recommendation)
	assert.Zero(t, res.Score)
}

func TestGovernor_ClosedGateIsBlock(t *testing.T) {
	gov := newTestGovernor(allowedGate(), &fakeHistory{}, &fakeOptOuts{},
		&fakeGates{closed: map[string]bool{domain.CapabilityMessaging: true}}, &fakeLeads{}, nil)

	res := gov.RunFull(context.Background(), passingContext())

	assert.Equal(t, domain.RecommendBlock, res.Recommendation)
}

func TestGovernor_EscalationBeatsExecute(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.ValidationContext)
	}{
		{"low confidence", func(vc *domain.ValidationContext) { vc.Confidence = 0.45; vc.Sentiment = 0.5 }},
		{"very negative sentiment", func(vc *domain.ValidationContext) { vc.Sentiment = -0.6 }},
		{"unknown intent", func(vc *domain.ValidationContext) { vc.Intent = domain.IntentUnknown }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gov := newTestGovernor(allowedGate(), &fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, &fakeLeads{}, nil)

			vc := passingContext()
			// Низкие баллы для эскалации могут валить и пороги конвейера —
			// это допустимо: проверяем только, что execute невозможен
			tt.mutate(&vc)

			res := gov.RunFull(context.Background(), vc)

			assert.True(t, res.Escalate)
			assert.NotEmpty(t, res.EscalationReasons)
			assert.NotEqual(t, domain.RecommendExecute, res.Recommendation)
			assert.False(t, res.CanExecute)
		})
	}
}

func TestGovernor_SoftFailureIsHold(t *testing.T) {
	gov := newTestGovernor(allowedGate(), &fakeHistory{perLead: 2}, &fakeOptOuts{}, &fakeGates{}, &fakeLeads{}, nil)

	res := gov.RunFull(context.Background(), passingContext())

	assert.Equal(t, domain.RecommendHold, res.Recommendation)
	assert.False(t, res.CanExecute)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, ValidatorRateLimit, res.Failed[0].Name)
}

func TestGovernor_DryRunPropagated(t *testing.T) {
	gate := allowedGate()
	gate.decision.DryRun = true
	gov := newTestGovernor(gate, &fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, &fakeLeads{}, nil)

	res := gov.RunFull(context.Background(), passingContext())

	// Одобрено, но вызывающий обязан подавить побочный эффект
	assert.True(t, res.CanExecute)
	assert.True(t, res.DryRun)
	assert.Equal(t, domain.RecommendExecute, res.Recommendation)
}

func TestGovernor_RecordsEvaluationEvents(t *testing.T) {
	sink := &captureSink{}
	gov := newTestGovernor(allowedGate(), &fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, &fakeLeads{}, sink)

	vc := passingContext()
	vc.TraceID = "trace-42"
	gov.RunFull(context.Background(), vc)

	require.Len(t, sink.events, 9, "по событию на каждый валидатор")
	for _, e := range sink.events {
		assert.Equal(t, "trace-42", e.TraceID)
		assert.Equal(t, "lead-1", e.LeadID)
		assert.NotEmpty(t, e.Validator)
	}
}

func TestGovernor_GateDenialRecordedToo(t *testing.T) {
	sink := &captureSink{}
	gate := &fakeGate{decision: domain.GateDecision{Allowed: false, Reason: "kill switch is engaged"}}
	gov := newTestGovernor(gate, &fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, &fakeLeads{}, sink)

	gov.RunFull(context.Background(), passingContext())

	require.Len(t, sink.events, 1)
	assert.Equal(t, "policy_gate", sink.events[0].Validator)
	assert.True(t, sink.events[0].Hard)
}

func TestGovernor_AssignsTraceID(t *testing.T) {
	sink := &captureSink{}
	gov := newTestGovernor(allowedGate(), &fakeHistory{}, &fakeOptOuts{}, &fakeGates{}, &fakeLeads{}, sink)

	vc := passingContext()
	vc.TraceID = ""
	gov.RunFull(context.Background(), vc)

	require.NotEmpty(t, sink.events)
	assert.NotEmpty(t, sink.events[0].TraceID, "trace id генерируется, если не передан")
}
