package flags

/*
Файл store.go — управляющие флаги контура автономии поверх Redis-хэша.

Два жёстких правила:
- Чтение всегда свежее (никакого L1-кэша): оператор дёрнул рубильник —
  следующий же просчёт обязан это увидеть.
- Fail-Closed: любая ошибка чтения или разбора возвращает SafeDisabledFlags.
  Недоступный Redis выключает контур, а не открывает его.

Каждая мутация проходит три шага в фиксированном порядке:
1. durable-запись состояния в Redis;
2. durable-запись в журнал flag_audit (кто, что, почему — дословно);
3. best-effort сигнал в Pub/Sub (сбой глотается с warn).
*/

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra"
)

// AuditSink — куда падают записи о мутациях (Postgres flag_audit)
type AuditSink interface {
	InsertFlagAudit(ctx context.Context, e *domain.FlagAuditEntry) error
}

type Store struct {
	rdb    *redis.Client
	audit  AuditSink
	logger *zap.Logger
}

func NewStore(rdb *redis.Client, audit AuditSink, logger *zap.Logger) *Store {
	return &Store{
		rdb:    rdb,
		audit:  audit,
		logger: logger.With(zap.String("mod", "flags")),
	}
}

// Current читает хэш заново на каждый вызов. Ошибок не возвращает:
// вся деградация — в сторону выключенного контура.
func (s *Store) Current(ctx context.Context) domain.AutonomyFlags {
	m, err := s.rdb.HGetAll(ctx, infra.RedisKeyAutonomyFlags).Result()
	if err != nil {
		s.logger.Warn("flags read failed, falling back to safe defaults", zap.Error(err))
		return domain.SafeDisabledFlags()
	}
	if len(m) == 0 {
		// Хэш не инициализирован — трактуем как «не сконфигурировано»
		return domain.SafeDisabledFlags()
	}

	flags, err := parseFlags(m)
	if err != nil {
		s.logger.Warn("flags parse failed, falling back to safe defaults", zap.Error(err))
		return domain.SafeDisabledFlags()
	}
	return flags
}

// Enable включает главный рубильник и запускает подсистему
func (s *Store) Enable(ctx context.Context, actor, reason string) (domain.AutonomyFlags, error) {
	return s.mutate(ctx, actor, reason, "enable", func(f *domain.AutonomyFlags) {
		f.Enabled = true
		f.Active = true
	})
}

// Disable — главный рубильник вниз. Этот же путь использует самоостановка
// (actor = "system:self-pause"): никакого отдельного кода для аварий.
func (s *Store) Disable(ctx context.Context, actor, reason string) (domain.AutonomyFlags, error) {
	return s.mutate(ctx, actor, reason, "disable", func(f *domain.AutonomyFlags) {
		f.Enabled = false
		f.Active = false
	})
}

// SetActive управляет подсистемой, не трогая главный рубильник:
// можно «вооружить» контур (enabled), но пока не запускать (active)
func (s *Store) SetActive(ctx context.Context, on bool, actor, reason string) (domain.AutonomyFlags, error) {
	return s.mutate(ctx, actor, reason, "set_active", func(f *domain.AutonomyFlags) {
		f.Active = on
	})
}

// Kill — аварийный стоп поверх остальных флагов. Enable его не снимает:
// только явный ClearKill.
func (s *Store) Kill(ctx context.Context, actor, reason string) (domain.AutonomyFlags, error) {
	return s.mutate(ctx, actor, reason, "kill", func(f *domain.AutonomyFlags) {
		f.Killed = true
	})
}

func (s *Store) ClearKill(ctx context.Context, actor, reason string) (domain.AutonomyFlags, error) {
	return s.mutate(ctx, actor, reason, "clear_kill", func(f *domain.AutonomyFlags) {
		f.Killed = false
	})
}

func (s *Store) SetDryRun(ctx context.Context, on bool, actor, reason string) (domain.AutonomyFlags, error) {
	return s.mutate(ctx, actor, reason, "set_dry_run", func(f *domain.AutonomyFlags) {
		f.DryRun = on
	})
}

func (s *Store) SetRequireConfirmation(ctx context.Context, on bool, actor, reason string) (domain.AutonomyFlags, error) {
	return s.mutate(ctx, actor, reason, "set_require_confirmation", func(f *domain.AutonomyFlags) {
		f.RequireConfirmation = on
	})
}

func (s *Store) SetLevel(ctx context.Context, level int, actor, reason string) (domain.AutonomyFlags, error) {
	if level < domain.LevelManual || level > domain.LevelAutonomous {
		return domain.AutonomyFlags{}, fmt.Errorf("autonomy level %d out of range [%d..%d]",
			level, domain.LevelManual, domain.LevelAutonomous)
	}
	return s.mutate(ctx, actor, reason, "set_level", func(f *domain.AutonomyFlags) {
		f.Level = level
	})
}

// SetHourlyLimits — глобальный бюджет и пороги самоостановки.
// Нули для порогов означают «вернуть дефолт».
func (s *Store) SetHourlyLimits(ctx context.Context, maxActions, maxErrors, maxEscalations int, actor, reason string) (domain.AutonomyFlags, error) {
	if maxActions < 0 || maxErrors < 0 || maxEscalations < 0 {
		return domain.AutonomyFlags{}, fmt.Errorf("hourly limits must be non-negative")
	}
	return s.mutate(ctx, actor, reason, "set_limits", func(f *domain.AutonomyFlags) {
		f.MaxActionsPerHour = maxActions
		f.MaxErrorsPerHour = maxErrors
		f.MaxEscalationsPerHour = maxEscalations
		if f.MaxErrorsPerHour <= 0 {
			f.MaxErrorsPerHour = domain.DefaultMaxErrorsPerHour
		}
		if f.MaxEscalationsPerHour <= 0 {
			f.MaxEscalationsPerHour = domain.DefaultMaxEscalationsPerHour
		}
	})
}

func (s *Store) mutate(ctx context.Context, actor, reason, action string, change func(*domain.AutonomyFlags)) (domain.AutonomyFlags, error) {
	// Accountability: мутация без автора или причины не принимается
	if actor == "" {
		return domain.AutonomyFlags{}, fmt.Errorf("flags %s: actor is required", action)
	}
	if reason == "" {
		return domain.AutonomyFlags{}, fmt.Errorf("flags %s: reason is required", action)
	}

	prev := s.Current(ctx)
	next := prev
	change(&next)

	// 1. Состояние. Если Redis лежит — мутация не состоялась, и точка.
	if err := s.writeAll(ctx, next); err != nil {
		return domain.AutonomyFlags{}, fmt.Errorf("flags %s: write state: %w", action, err)
	}

	// 2. Журнал. Состояние уже переключено, поэтому сбой аудита —
	// громкая ошибка, но не откат (безопасность важнее бухгалтерии).
	entry := &domain.FlagAuditEntry{
		ID:       uuid.NewString(),
		Actor:    actor,
		Action:   action,
		Reason:   reason,
		Previous: prev,
		Current:  next,
	}
	if err := s.audit.InsertFlagAudit(ctx, entry); err != nil {
		s.logger.Error("flag audit write failed",
			zap.String("action", action), zap.String("actor", actor), zap.Error(err))
		return next, fmt.Errorf("flags %s: state changed but audit write failed: %w", action, err)
	}

	// 3. Сигнал. Best-effort: подписчики и так перечитают флаги.
	if err := s.rdb.Publish(ctx, infra.RedisChanFlagsUpdate, action+":"+actor).Err(); err != nil {
		s.logger.Warn("flags signal publish failed", zap.Error(err))
	}

	s.logger.Info("autonomy flags changed",
		zap.String("action", action),
		zap.String("actor", actor),
		zap.String("reason", reason),
		zap.Bool("enabled", next.Enabled),
		zap.Int("level", next.Level),
	)
	return next, nil
}

func (s *Store) writeAll(ctx context.Context, f domain.AutonomyFlags) error {
	return s.rdb.HSet(ctx, infra.RedisKeyAutonomyFlags, map[string]interface{}{
		"enabled":                  strconv.FormatBool(f.Enabled),
		"active":                   strconv.FormatBool(f.Active),
		"dry_run":                  strconv.FormatBool(f.DryRun),
		"require_confirmation":     strconv.FormatBool(f.RequireConfirmation),
		"level":                    strconv.Itoa(f.Level),
		"killed":                   strconv.FormatBool(f.Killed),
		"max_actions_per_hour":     strconv.Itoa(f.MaxActionsPerHour),
		"max_errors_per_hour":      strconv.Itoa(f.MaxErrorsPerHour),
		"max_escalations_per_hour": strconv.Itoa(f.MaxEscalationsPerHour),
	}).Err()
}

func parseFlags(m map[string]string) (domain.AutonomyFlags, error) {
	var f domain.AutonomyFlags
	var err error

	parseBool := func(key string) (bool, error) {
		v, ok := m[key]
		if !ok {
			return false, nil // Отсутствующее поле — безопасный false
		}
		return strconv.ParseBool(v)
	}
	parseInt := func(key string) (int, error) {
		v, ok := m[key]
		if !ok {
			return 0, nil
		}
		return strconv.Atoi(v)
	}

	if f.Enabled, err = parseBool("enabled"); err != nil {
		return f, fmt.Errorf("field enabled: %w", err)
	}
	if f.Active, err = parseBool("active"); err != nil {
		return f, fmt.Errorf("field active: %w", err)
	}
	if f.DryRun, err = parseBool("dry_run"); err != nil {
		return f, fmt.Errorf("field dry_run: %w", err)
	}
	if f.RequireConfirmation, err = parseBool("require_confirmation"); err != nil {
		return f, fmt.Errorf("field require_confirmation: %w", err)
	}
	if f.Killed, err = parseBool("killed"); err != nil {
		return f, fmt.Errorf("field killed: %w", err)
	}
	if f.Level, err = parseInt("level"); err != nil {
		return f, fmt.Errorf("field level: %w", err)
	}
	if f.MaxActionsPerHour, err = parseInt("max_actions_per_hour"); err != nil {
		return f, fmt.Errorf("field max_actions_per_hour: %w", err)
	}
	if f.MaxErrorsPerHour, err = parseInt("max_errors_per_hour"); err != nil {
		return f, fmt.Errorf("field max_errors_per_hour: %w", err)
	}
	if f.MaxEscalationsPerHour, err = parseInt("max_escalations_per_hour"); err != nil {
		return f, fmt.Errorf("field max_escalations_per_hour: %w", err)
	}

	// Нулевые пороги самоостановки означают «не задано» — ставим дефолт
	if f.MaxErrorsPerHour <= 0 {
		f.MaxErrorsPerHour = domain.DefaultMaxErrorsPerHour
	}
	if f.MaxEscalationsPerHour <= 0 {
		f.MaxEscalationsPerHour = domain.DefaultMaxEscalationsPerHour
	}
	return f, nil
}
