package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"go.uber.org/zap"
)

// ThresholdRepository описывает требования сервиса к хранилищу оверрайдов
type ThresholdRepository interface {
	UpsertThreshold(ctx context.Context, t domain.ActionThreshold) error
	DeleteThreshold(ctx context.Context, kind domain.ActionKind) error
}

// EffectiveThresholds — вычисление действующих порогов (дефолт + оверрайд)
type EffectiveThresholds interface {
	Effective(ctx context.Context, kind domain.ActionKind) domain.ActionThreshold
	ListEffective(ctx context.Context) []domain.ActionThreshold
}

type ThresholdService struct {
	repo      ThresholdRepository
	effective EffectiveThresholds
	logger    *zap.Logger
}

func NewThresholdService(repo ThresholdRepository, effective EffectiveThresholds, logger *zap.Logger) *ThresholdService {
	return &ThresholdService{
		repo:      repo,
		effective: effective,
		logger:    logger.Named("threshold-service"),
	}
}

// ListEffective возвращает действующие пороги всех видов действий.
// Именно их видит Governor: строка либо из Postgres, либо вшитый дефолт.
func (s *ThresholdService) ListEffective(ctx context.Context) []domain.ActionThreshold {
	return s.effective.ListEffective(ctx)
}

func (s *ThresholdService) GetEffective(ctx context.Context, kind domain.ActionKind) domain.ActionThreshold {
	return s.effective.Effective(ctx, kind)
}

// Upsert сохраняет оверрайд порогов для вида действия.
// Сигнал инвалидации не нужен: Governor читает пороги заново на каждом
// прогоне, следующая оценка уже увидит новую строку.
func (s *ThresholdService) Upsert(ctx context.Context, t domain.ActionThreshold) error {
	if err := ValidateThreshold(t); err != nil {
		return err
	}

	// RequiredLevel оператор не редактирует: это контракт таблицы видов,
	// колонка в оверрайде — дубль для консоли
	t.RequiredLevel = t.Kind.RequiredLevel()

	if err := s.repo.UpsertThreshold(ctx, t); err != nil {
		s.logger.Error("threshold upsert failed", zap.String("kind", t.Kind.String()), zap.Error(err))
		return fmt.Errorf("console: upsert threshold: %w", err)
	}

	s.logger.Info("threshold override saved",
		zap.String("kind", t.Kind.String()),
		zap.Float64("min_confidence", t.MinConfidence),
		zap.Int("max_per_lead_hour", t.MaxPerLeadHour),
		zap.Int("max_global_hour", t.MaxGlobalHour),
	)
	return nil
}

// Delete снимает оверрайд: вид действия возвращается к вшитым дефолтам
func (s *ThresholdService) Delete(ctx context.Context, kind domain.ActionKind) error {
	if err := s.repo.DeleteThreshold(ctx, kind); err != nil {
		s.logger.Error("threshold delete failed", zap.String("kind", kind.String()), zap.Error(err))
		return fmt.Errorf("console: delete threshold: %w", err)
	}
	s.logger.Info("threshold override removed, builtin defaults apply", zap.String("kind", kind.String()))
	return nil
}

// ValidateThreshold — доменные границы полей. Экспортирован, чтобы
// HTTP-слой мог отличить ошибку оператора (400) от ошибки хранилища (500).
func ValidateThreshold(t domain.ActionThreshold) error {
	if !t.Kind.Valid() {
		return fmt.Errorf("unknown action kind %q", string(t.Kind))
	}
	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return fmt.Errorf("min_confidence %.2f out of range [0..1]", t.MinConfidence)
	}
	if t.MinSentiment < -1 || t.MinSentiment > 1 {
		return fmt.Errorf("min_sentiment %.2f out of range [-1..1]", t.MinSentiment)
	}
	if t.MinCompleteness < 0 || t.MinCompleteness > 1 {
		return fmt.Errorf("min_completeness %.2f out of range [0..1]", t.MinCompleteness)
	}
	if t.MaxPerLeadHour < 0 || t.MaxGlobalHour < 0 || t.CooldownMinutes < 0 {
		return fmt.Errorf("limits and cooldown must be non-negative")
	}
	if t.SendWindowStart < 0 || t.SendWindowStart > 23 {
		return fmt.Errorf("send_window_start %d out of range [0..23]", t.SendWindowStart)
	}
	if t.SendWindowEnd < 0 || t.SendWindowEnd > 24 {
		return fmt.Errorf("send_window_end %d out of range [0..24]", t.SendWindowEnd)
	}
	// Пустое или перевёрнутое окно заблокировало бы все исходящие навсегда
	if t.SendWindowEnd <= t.SendWindowStart {
		return fmt.Errorf("send window [%d..%d) is empty: no hour would ever pass", t.SendWindowStart, t.SendWindowEnd)
	}
	if t.EscalateValueOver != nil && *t.EscalateValueOver < 0 {
		return fmt.Errorf("escalate_value_over must be non-negative")
	}
	return nil
}
