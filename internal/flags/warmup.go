package flags

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra"
)

// EnsureDefaults — прогрев L2 (Redis) при старте. Если хэш флагов ещё
// не существует, заливаем SafeDisabled-состояние: свежая инсталляция
// просыпается выключенной, а не в неопределённости.
func (s *Store) EnsureDefaults(ctx context.Context) error {
	// 1. Распределенная блокировка (SetNX), чтобы только один инстанс
	// выполнял инициализацию
	ok, err := s.rdb.SetNX(ctx, infra.RedisKeyLockFlagsWarmup, "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return nil // Либо ошибка сети, либо другой инстанс уже греет
	}

	// 2. Проверка наполненности Redis
	exists, err := s.rdb.Exists(ctx, infra.RedisKeyAutonomyFlags).Result()
	if err != nil {
		s.logger.Warn("could not check flags hash, skipping warm-up", zap.Error(err))
		return nil
	}
	if exists > 0 {
		return nil // Уже сконфигурировано — ничего не трогаем
	}

	// 3. Заливаем безопасные дефолты
	s.logger.Info("flags hash is empty, seeding safe-disabled defaults")
	if err := s.writeAll(ctx, domain.SafeDisabledFlags()); err != nil {
		return err
	}

	// Bootstrap тоже оставляет след в журнале
	entry := &domain.FlagAuditEntry{
		ID:       uuid.NewString(),
		Actor:    "system:bootstrap",
		Action:   "bootstrap",
		Reason:   "initial safe-disabled state seeded on first start",
		Previous: domain.SafeDisabledFlags(),
		Current:  domain.SafeDisabledFlags(),
	}
	if err := s.audit.InsertFlagAudit(ctx, entry); err != nil {
		s.logger.Warn("bootstrap audit write failed", zap.Error(err))
	}
	return nil
}
