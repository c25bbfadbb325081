package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

func strPtr(s string) *string      { return &s }
func f64Ptr(v float64) *float64    { return &v }
func lead(id string) *domain.Lead  { return &domain.Lead{ID: id} }
func candidateFor(goal string, kind domain.ActionKind, leadIDs ...string) domain.CandidateAction {
	return domain.CandidateAction{
		Agent:   domain.AgentProspector,
		Kind:    kind,
		GoalKey: goal,
		LeadIDs: leadIDs,
		Count:   len(leadIDs),
	}
}

func TestBuildContext_OutboundTakesLeadIntent(t *testing.T) {
	c := candidateFor(domain.GoalContactNewLeads, domain.KindMessageSend, "lead-1")
	l := lead("lead-1")
	l.Intent = domain.IntentInterested

	vc := BuildContext(c, l, "trace-1")

	assert.Equal(t, "lead-1", vc.LeadID)
	assert.Equal(t, "trace-1", vc.TraceID)
	assert.Equal(t, domain.IntentInterested, vc.Intent)
	assert.Equal(t, 0.6, vc.Sentiment)
	assert.Equal(t, 1.0, vc.RiskMultiplier)
	// Базовая уверенность категории + бонус за живой интерес
	assert.InDelta(t, 0.90, vc.Confidence, 1e-9)
}

func TestBuildContext_InternalKindsUseInternalIntent(t *testing.T) {
	c := candidateFor(domain.GoalEnrichLeads, domain.KindLeadEnrich, "lead-1")
	l := lead("lead-1")
	l.Intent = domain.IntentInterested // Не должен просочиться во внутреннее действие

	vc := BuildContext(c, l, "")

	assert.Equal(t, domain.IntentInternal, vc.Intent)
}

func TestBuildContext_NilLeadIsConservative(t *testing.T) {
	// Карточка исчезла между выборкой и тиком: intent unknown уведёт в эскалацию
	c := candidateFor(domain.GoalContactNewLeads, domain.KindMessageSend, "lead-1")

	vc := BuildContext(c, nil, "")

	assert.Equal(t, domain.IntentUnknown, vc.Intent)
	assert.Zero(t, vc.Sentiment)
	assert.Zero(t, vc.Completeness)
	assert.Equal(t, 1.0, vc.RiskMultiplier)
}

func TestBuildContext_ObjectionLowersConfidence(t *testing.T) {
	c := candidateFor(domain.GoalNurtureStale, domain.KindMessageSend, "lead-1")
	l := lead("lead-1")
	l.Intent = domain.IntentObjection

	vc := BuildContext(c, l, "")

	assert.Equal(t, -0.6, vc.Sentiment)
	assert.InDelta(t, 0.60, vc.Confidence, 1e-9) // 0.70 базовых минус 0.10
}

func TestBuildContext_BigContractRaisesRisk(t *testing.T) {
	c := candidateFor(domain.GoalCloseContracts, domain.KindContractSend, "lead-1")
	l := lead("lead-1")
	l.DealValue = 150000

	vc := BuildContext(c, l, "")

	assert.Equal(t, 0.8, vc.RiskMultiplier)
}

func TestBuildContext_OptedOutLeadZeroesRisk(t *testing.T) {
	// Ремень безопасности поверх SQL-фильтров: риск 0 = жёсткое вето конвейера
	c := candidateFor(domain.GoalContactNewLeads, domain.KindMessageSend, "lead-1")
	l := lead("lead-1")
	l.OptedOut = true

	vc := BuildContext(c, l, "")

	assert.Zero(t, vc.RiskMultiplier)
}

func TestBuildContext_Completeness(t *testing.T) {
	c := candidateFor(domain.GoalContactNewLeads, domain.KindMessageSend, "lead-1")

	full := lead("lead-1")
	full.Email = strPtr("a@b.co")
	full.Phone = strPtr("+100")
	full.Score = f64Ptr(0.7)
	full.Intent = domain.IntentQuestion
	full.DealValue = 5000

	vc := BuildContext(c, full, "")
	assert.Equal(t, 1.0, vc.Completeness)

	half := lead("lead-1")
	half.Email = strPtr("a@b.co")
	half.DealValue = 5000

	vc = BuildContext(c, half, "")
	assert.InDelta(t, 0.4, vc.Completeness, 1e-9)
}

func TestGoalTarget(t *testing.T) {
	assert.Equal(t, 20, GoalTarget(domain.GoalContactNewLeads))
	assert.Equal(t, 5, GoalTarget(domain.GoalCloseContracts))
	assert.Zero(t, GoalTarget("unknown_goal"))
}
