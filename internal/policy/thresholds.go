package policy

import (
	"context"

	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// ThresholdRepository — доступ к админским overrides в Postgres
type ThresholdRepository interface {
	GetThreshold(ctx context.Context, kind domain.ActionKind) (*domain.ActionThreshold, error)
	ListThresholds(ctx context.Context) ([]domain.ActionThreshold, error)
}

// ThresholdService отдаёт эффективные пороги: override из БД, если задан,
// иначе вшитый дефолт. Ошибок наружу не отдаёт — при сбое БД работаем
// на дефолтах: пороги детерминированы всегда.
type ThresholdService struct {
	repo   ThresholdRepository
	logger *zap.Logger
}

func NewThresholdService(repo ThresholdRepository, logger *zap.Logger) *ThresholdService {
	return &ThresholdService{
		repo:   repo,
		logger: logger.Named("thresholds"),
	}
}

func (s *ThresholdService) Effective(ctx context.Context, kind domain.ActionKind) domain.ActionThreshold {
	def, ok := domain.DefaultThreshold(kind)
	if !ok {
		// Невалидный Kind сюда не доходит (закрытый enum на границе),
		// но дыру между enum и таблицей страхуем заведомо запретительным порогом
		return domain.ActionThreshold{
			Kind:          kind,
			MinConfidence: 1.1,
			RequiredLevel: domain.LevelAutonomous + 1,
		}
	}

	override, err := s.repo.GetThreshold(ctx, kind)
	if err != nil {
		s.logger.Warn("threshold lookup failed, using compiled default",
			zap.String("kind", string(kind)), zap.Error(err))
		return def
	}
	if override == nil {
		return def
	}
	return *override
}

// ListEffective — пороги всех видов с применёнными overrides (для консоли)
func (s *ThresholdService) ListEffective(ctx context.Context) []domain.ActionThreshold {
	overrides := make(map[domain.ActionKind]domain.ActionThreshold)
	if rows, err := s.repo.ListThresholds(ctx); err != nil {
		s.logger.Warn("threshold list failed, using compiled defaults", zap.Error(err))
	} else {
		for _, t := range rows {
			overrides[t.Kind] = t
		}
	}

	result := make([]domain.ActionThreshold, 0, len(domain.AllKinds()))
	for _, kind := range domain.AllKinds() {
		if t, ok := overrides[kind]; ok {
			result = append(result, t)
			continue
		}
		def, _ := domain.DefaultThreshold(kind)
		result = append(result, def)
	}
	return result
}
