package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

type fakeThresholdRepo struct {
	overrides map[domain.ActionKind]*domain.ActionThreshold
	err       error
}

func (f *fakeThresholdRepo) GetThreshold(_ context.Context, kind domain.ActionKind) (*domain.ActionThreshold, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.overrides[kind], nil
}

func (f *fakeThresholdRepo) ListThresholds(_ context.Context) ([]domain.ActionThreshold, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.ActionThreshold, 0, len(f.overrides))
	for _, t := range f.overrides {
		out = append(out, *t)
	}
	return out, nil
}

func TestThresholds_DefaultWhenNoOverride(t *testing.T) {
	s := NewThresholdService(&fakeThresholdRepo{}, zap.NewNop())

	got := s.Effective(context.Background(), domain.KindMessageSend)

	def, _ := domain.DefaultThreshold(domain.KindMessageSend)
	assert.Equal(t, def, got)
}

func TestThresholds_OverrideWins(t *testing.T) {
	override := domain.ActionThreshold{
		Kind:          domain.KindMessageSend,
		MinConfidence: 0.95,
		RequiredLevel: domain.LevelAutonomous,
	}
	repo := &fakeThresholdRepo{overrides: map[domain.ActionKind]*domain.ActionThreshold{
		domain.KindMessageSend: &override,
	}}
	s := NewThresholdService(repo, zap.NewNop())

	got := s.Effective(context.Background(), domain.KindMessageSend)

	assert.Equal(t, override, got)
}

func TestThresholds_RepoErrorFallsBackToDefault(t *testing.T) {
	s := NewThresholdService(&fakeThresholdRepo{err: errors.New("pg down")}, zap.NewNop())

	got := s.Effective(context.Background(), domain.KindContractSend)

	def, _ := domain.DefaultThreshold(domain.KindContractSend)
	assert.Equal(t, def, got, "сбой БД не делает пороги неопределёнными")
}

func TestThresholds_InvalidKindIsProhibitive(t *testing.T) {
	s := NewThresholdService(&fakeThresholdRepo{}, zap.NewNop())

	got := s.Effective(context.Background(), domain.ActionKind("nope"))

	assert.Greater(t, got.MinConfidence, 1.0)
	assert.Greater(t, got.RequiredLevel, domain.LevelAutonomous)
}

func TestThresholds_ListEffectiveCoversAllKinds(t *testing.T) {
	override := domain.ActionThreshold{Kind: domain.KindLeadEnrich, MinConfidence: 0.5}
	repo := &fakeThresholdRepo{overrides: map[domain.ActionKind]*domain.ActionThreshold{
		domain.KindLeadEnrich: &override,
	}}
	s := NewThresholdService(repo, zap.NewNop())

	list := s.ListEffective(context.Background())

	require.Len(t, list, len(domain.AllKinds()))
	byKind := make(map[domain.ActionKind]domain.ActionThreshold, len(list))
	for _, th := range list {
		byKind[th.Kind] = th
	}
	assert.Equal(t, override, byKind[domain.KindLeadEnrich])

	def, _ := domain.DefaultThreshold(domain.KindMessageSend)
	assert.Equal(t, def, byKind[domain.KindMessageSend])
}
