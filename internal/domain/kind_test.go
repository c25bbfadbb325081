package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionKind(t *testing.T) {
	for _, k := range AllKinds() {
		parsed, err := ParseActionKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseActionKind("lead.delete")
	assert.Error(t, err)

	_, err = ParseActionKind("")
	assert.Error(t, err)
}

func TestActionKind_FailSafeForUnknown(t *testing.T) {
	unknown := ActionKind("something.else")

	// Неизвестный вид никогда не должен пройти по уровню или гейту
	assert.Greater(t, unknown.RequiredLevel(), LevelAutonomous)
	assert.Empty(t, unknown.Capability())
}

func TestActionKind_SpecsCoverEnum(t *testing.T) {
	for _, k := range AllKinds() {
		assert.NotEmpty(t, k.Capability(), "kind %s has no capability", k)
		assert.LessOrEqual(t, k.RequiredLevel(), LevelAutonomous, "kind %s unreachable", k)
	}
}

func TestIntentWeight(t *testing.T) {
	assert.Equal(t, 1.0, IntentWeight(IntentInterested))
	assert.Equal(t, 0.7, IntentWeight(IntentQuestion))
	assert.Equal(t, 0.5, IntentWeight(IntentObjection))
	assert.Equal(t, 0.5, IntentWeight(IntentUnknown))
	assert.Equal(t, 0.5, IntentWeight("gibberish"))
}

func TestSafeDisabledFlags(t *testing.T) {
	f := SafeDisabledFlags()

	assert.False(t, f.Enabled)
	assert.False(t, f.Active)
	assert.True(t, f.DryRun)
	assert.True(t, f.RequireConfirmation)
	assert.Equal(t, LevelManual, f.Level)
	assert.Equal(t, DefaultMaxErrorsPerHour, f.MaxErrorsPerHour)
	assert.Equal(t, DefaultMaxEscalationsPerHour, f.MaxEscalationsPerHour)
}

func TestLevelAllows(t *testing.T) {
	f := AutonomyFlags{Level: LevelSupervised}

	assert.True(t, f.LevelAllows(LevelManual))
	assert.True(t, f.LevelAllows(LevelSupervised))
	assert.False(t, f.LevelAllows(LevelAutonomous))
}

func TestInSendWindow(t *testing.T) {
	business := ActionThreshold{SendWindowStart: 9, SendWindowEnd: 18}
	assert.False(t, business.InSendWindow(8))
	assert.True(t, business.InSendWindow(9))
	assert.True(t, business.InSendWindow(17))
	assert.False(t, business.InSendWindow(18)) // Правая граница исключена
	assert.False(t, business.InSendWindow(23))

	always := ActionThreshold{SendWindowStart: 0, SendWindowEnd: 24}
	for h := 0; h < 24; h++ {
		assert.True(t, always.InSendWindow(h), "hour %d", h)
	}
}

func TestDefaultThreshold(t *testing.T) {
	for _, k := range AllKinds() {
		th, ok := DefaultThreshold(k)
		require.True(t, ok, "kind %s has no default threshold", k)
		assert.Equal(t, k, th.Kind)
	}

	_, ok := DefaultThreshold(ActionKind("nope"))
	assert.False(t, ok)
}

func TestApprovalTransitions(t *testing.T) {
	app := &ApprovalRequest{Status: StatusPending}
	assert.NoError(t, app.CanTransitionTo(StatusApproved))
	assert.NoError(t, app.CanTransitionTo(StatusRejected))
	assert.ErrorIs(t, app.CanTransitionTo(StatusPending), ErrInvalidTransition)

	app.Status = StatusApproved
	assert.ErrorIs(t, app.CanTransitionTo(StatusRejected), ErrAlreadyProcessed)
}
