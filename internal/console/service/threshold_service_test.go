package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

type fakeThresholdRepo struct {
	upserted []domain.ActionThreshold
	deleted  []domain.ActionKind
}

func (f *fakeThresholdRepo) UpsertThreshold(_ context.Context, t domain.ActionThreshold) error {
	f.upserted = append(f.upserted, t)
	return nil
}

func (f *fakeThresholdRepo) DeleteThreshold(_ context.Context, kind domain.ActionKind) error {
	f.deleted = append(f.deleted, kind)
	return nil
}

type fakeEffective struct{}

func (fakeEffective) Effective(_ context.Context, kind domain.ActionKind) domain.ActionThreshold {
	th, _ := domain.DefaultThreshold(kind)
	return th
}

func (fakeEffective) ListEffective(_ context.Context) []domain.ActionThreshold {
	out := make([]domain.ActionThreshold, 0, len(domain.AllKinds()))
	for _, k := range domain.AllKinds() {
		th, _ := domain.DefaultThreshold(k)
		out = append(out, th)
	}
	return out
}

func validOverride() domain.ActionThreshold {
	t, _ := domain.DefaultThreshold(domain.KindMessageSend)
	t.MinConfidence = 0.8
	return t
}

func TestValidateThreshold(t *testing.T) {
	bad := func(mutate func(*domain.ActionThreshold)) domain.ActionThreshold {
		th := validOverride()
		mutate(&th)
		return th
	}
	neg := -5.0

	cases := []struct {
		name      string
		threshold domain.ActionThreshold
		wantErr   string
	}{
		{"valid", validOverride(), ""},
		{"unknown kind", bad(func(th *domain.ActionThreshold) { th.Kind = "lead.delete" }), "unknown action kind"},
		{"confidence above 1", bad(func(th *domain.ActionThreshold) { th.MinConfidence = 1.2 }), "min_confidence"},
		{"sentiment below -1", bad(func(th *domain.ActionThreshold) { th.MinSentiment = -1.5 }), "min_sentiment"},
		{"completeness negative", bad(func(th *domain.ActionThreshold) { th.MinCompleteness = -0.1 }), "min_completeness"},
		{"negative limit", bad(func(th *domain.ActionThreshold) { th.MaxPerLeadHour = -1 }), "non-negative"},
		{"negative cooldown", bad(func(th *domain.ActionThreshold) { th.CooldownMinutes = -10 }), "non-negative"},
		{"window start 24", bad(func(th *domain.ActionThreshold) { th.SendWindowStart = 24 }), "send_window_start"},
		{"window end 25", bad(func(th *domain.ActionThreshold) { th.SendWindowEnd = 25 }), "send_window_end"},
		{"window end 24 valid", bad(func(th *domain.ActionThreshold) { th.SendWindowEnd = 24 }), ""},
		{"zero window", bad(func(th *domain.ActionThreshold) { th.SendWindowStart = 0; th.SendWindowEnd = 0 }), "is empty"},
		{"window end equals start", bad(func(th *domain.ActionThreshold) { th.SendWindowStart = 9; th.SendWindowEnd = 9 }), "is empty"},
		{"inverted window", bad(func(th *domain.ActionThreshold) { th.SendWindowStart = 18; th.SendWindowEnd = 9 }), "is empty"},
		{"negative escalation value", bad(func(th *domain.ActionThreshold) { th.EscalateValueOver = &neg }), "escalate_value_over"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateThreshold(tc.threshold)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestThresholdService_UpsertRejectsInvalid(t *testing.T) {
	repo := &fakeThresholdRepo{}
	svc := NewThresholdService(repo, fakeEffective{}, zap.NewNop())

	th := validOverride()
	th.MinConfidence = 2.0
	err := svc.Upsert(context.Background(), th)

	require.Error(t, err)
	assert.Empty(t, repo.upserted, "невалидный оверрайд не доходит до хранилища")
}

func TestThresholdService_UpsertWithoutValueGate(t *testing.T) {
	repo := &fakeThresholdRepo{}
	svc := NewThresholdService(repo, fakeEffective{}, zap.NewNop())

	// У message.send нет порога эскалации по сумме: nil уходит в хранилище
	// как есть и ложится в БД как NULL
	th := validOverride()
	require.Nil(t, th.EscalateValueOver)
	require.NoError(t, svc.Upsert(context.Background(), th))

	require.Len(t, repo.upserted, 1)
	assert.Nil(t, repo.upserted[0].EscalateValueOver)
}

func TestThresholdService_UpsertPinsRequiredLevel(t *testing.T) {
	repo := &fakeThresholdRepo{}
	svc := NewThresholdService(repo, fakeEffective{}, zap.NewNop())

	th := validOverride()
	th.RequiredLevel = 0 // Оператор пытается ослабить уровень
	require.NoError(t, svc.Upsert(context.Background(), th))

	require.Len(t, repo.upserted, 1)
	assert.Equal(t, domain.KindMessageSend.RequiredLevel(), repo.upserted[0].RequiredLevel,
		"уровень автономии берётся из таблицы видов, не из запроса")
}

func TestThresholdService_Delete(t *testing.T) {
	repo := &fakeThresholdRepo{}
	svc := NewThresholdService(repo, fakeEffective{}, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), domain.KindContractSend))
	assert.Equal(t, []domain.ActionKind{domain.KindContractSend}, repo.deleted)
}
