package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

type fakeFlagSource struct {
	flags domain.AutonomyFlags
	reads int
}

func (f *fakeFlagSource) Current(_ context.Context) domain.AutonomyFlags {
	f.reads++
	return f.flags
}

type defaultThresholds struct{}

func (defaultThresholds) Effective(_ context.Context, kind domain.ActionKind) domain.ActionThreshold {
	th, _ := domain.DefaultThreshold(kind)
	return th
}

func runningFlags() domain.AutonomyFlags {
	return domain.AutonomyFlags{
		Enabled: true,
		Active:  true,
		Level:   domain.LevelSupervised,
	}
}

func newTestGate(flags domain.AutonomyFlags) (*Gate, *fakeFlagSource) {
	src := &fakeFlagSource{flags: flags}
	return NewGate(src, defaultThresholds{}, zap.NewNop()), src
}

func TestGate_AllowsWhenAllChecksPass(t *testing.T) {
	g, _ := newTestGate(runningFlags())

	d := g.CanExecute(context.Background(), domain.KindMessageSend)

	assert.True(t, d.Allowed)
	assert.Equal(t, domain.LevelSupervised, d.LevelCurrent)
	assert.Equal(t, domain.LevelSupervised, d.LevelRequired)
}

func TestGate_MasterFlagOff(t *testing.T) {
	f := runningFlags()
	f.Enabled = false
	g, _ := newTestGate(f)

	// Любой вид действия — причина всегда называет главный рубильник
	for _, kind := range domain.AllKinds() {
		d := g.CanExecute(context.Background(), kind)
		assert.False(t, d.Allowed, "kind %s", kind)
		assert.Contains(t, d.Reason, "master flag")
	}
}

func TestGate_CheckOrderShortCircuits(t *testing.T) {
	// Все условия провалены разом: причина — первое сработавшее правило
	f := domain.AutonomyFlags{Enabled: false, Active: false, Killed: true, Level: 0}
	g, _ := newTestGate(f)
	d := g.CanExecute(context.Background(), domain.KindMessageSend)
	assert.Contains(t, d.Reason, "master flag")

	f.Enabled = true
	g, _ = newTestGate(f)
	d = g.CanExecute(context.Background(), domain.KindMessageSend)
	assert.Contains(t, d.Reason, "not active")

	f.Active = true
	g, _ = newTestGate(f)
	d = g.CanExecute(context.Background(), domain.KindMessageSend)
	assert.Contains(t, d.Reason, "kill switch")

	f.Killed = false
	g, _ = newTestGate(f)
	d = g.CanExecute(context.Background(), domain.KindMessageSend)
	assert.Contains(t, d.Reason, "level")
	assert.Equal(t, 0, d.LevelCurrent)
	assert.Equal(t, domain.LevelSupervised, d.LevelRequired)
}

func TestGate_LevelSufficiencyPerKind(t *testing.T) {
	f := runningFlags()
	f.Level = domain.LevelSuggest
	g, _ := newTestGate(f)

	// Внутренние действия проходят на уровне suggest
	assert.True(t, g.CanExecute(context.Background(), domain.KindLeadEnrich).Allowed)
	assert.True(t, g.CanExecute(context.Background(), domain.KindDataRequest).Allowed)

	// Исходящие требуют supervised
	assert.False(t, g.CanExecute(context.Background(), domain.KindMessageSend).Allowed)
	assert.False(t, g.CanExecute(context.Background(), domain.KindContractSend).Allowed)
}

func TestGate_UnknownKindDenied(t *testing.T) {
	g, _ := newTestGate(runningFlags())

	d := g.CanExecute(context.Background(), domain.ActionKind("lead.delete"))

	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "unknown action kind")
}

func TestGate_PropagatesDryRunAndConfirmationEvenOnDenial(t *testing.T) {
	f := runningFlags()
	f.Enabled = false
	f.DryRun = true
	f.RequireConfirmation = true
	g, _ := newTestGate(f)

	d := g.CanExecute(context.Background(), domain.KindMessageSend)

	assert.False(t, d.Allowed)
	assert.True(t, d.DryRun)
	assert.True(t, d.RequiresConfirmation)
}

func TestGate_ReadsFlagsFreshEveryCall(t *testing.T) {
	g, src := newTestGate(runningFlags())

	g.CanExecute(context.Background(), domain.KindMessageSend)
	g.CanExecute(context.Background(), domain.KindMessageSend)

	assert.Equal(t, 2, src.reads, "никакого кэширования между вызовами")
}
