package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/flags"
	"go.uber.org/zap"
)

// FlagAuditProvider — журнал переключений контура. Консоль и читает его,
// и дописывает записи о переключениях гейтов (они живут вне флагового хэша).
type FlagAuditProvider interface {
	ListFlagAudit(ctx context.Context, limit int) ([]domain.FlagAuditEntry, error)
	InsertFlagAudit(ctx context.Context, e *domain.FlagAuditEntry) error
}

// FlagsService — административная обертка над Store и GateManager.
// Бизнес-правило одно, но железное: мутация без actor и reason не
// принимается (Accountability). Store дублирует эту проверку у себя.
type FlagsService struct {
	store  *flags.Store
	gates  *flags.GateManager
	audit  FlagAuditProvider
	logger *zap.Logger
}

func NewFlagsService(store *flags.Store, gates *flags.GateManager, audit FlagAuditProvider, logger *zap.Logger) *FlagsService {
	return &FlagsService{
		store:  store,
		gates:  gates,
		audit:  audit,
		logger: logger.Named("flags-service"),
	}
}

// Current — свежее состояние флагов. Кэширования нет намеренно:
// оператор должен видеть то же, что видит движок.
func (s *FlagsService) Current(ctx context.Context) domain.AutonomyFlags {
	return s.store.Current(ctx)
}

func (s *FlagsService) Enable(ctx context.Context, actor, reason string) (domain.AutonomyFlags, error) {
	return s.store.Enable(ctx, actor, reason)
}

func (s *FlagsService) Disable(ctx context.Context, actor, reason string) (domain.AutonomyFlags, error) {
	return s.store.Disable(ctx, actor, reason)
}

func (s *FlagsService) SetActive(ctx context.Context, on bool, actor, reason string) (domain.AutonomyFlags, error) {
	return s.store.SetActive(ctx, on, actor, reason)
}

func (s *FlagsService) Kill(ctx context.Context, actor, reason string) (domain.AutonomyFlags, error) {
	return s.store.Kill(ctx, actor, reason)
}

func (s *FlagsService) ClearKill(ctx context.Context, actor, reason string) (domain.AutonomyFlags, error) {
	return s.store.ClearKill(ctx, actor, reason)
}

func (s *FlagsService) SetDryRun(ctx context.Context, on bool, actor, reason string) (domain.AutonomyFlags, error) {
	return s.store.SetDryRun(ctx, on, actor, reason)
}

func (s *FlagsService) SetRequireConfirmation(ctx context.Context, on bool, actor, reason string) (domain.AutonomyFlags, error) {
	return s.store.SetRequireConfirmation(ctx, on, actor, reason)
}

func (s *FlagsService) SetLevel(ctx context.Context, level int, actor, reason string) (domain.AutonomyFlags, error) {
	return s.store.SetLevel(ctx, level, actor, reason)
}

func (s *FlagsService) SetHourlyLimits(ctx context.Context, maxActions, maxErrors, maxEscalations int, actor, reason string) (domain.AutonomyFlags, error) {
	return s.store.SetHourlyLimits(ctx, maxActions, maxErrors, maxEscalations, actor, reason)
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditTrail — последние переключения, свежие сверху
func (s *FlagsService) AuditTrail(ctx context.Context, limit int) ([]domain.FlagAuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	entries, err := s.audit.ListFlagAudit(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("console: flag audit: %w", err)
	}
	return entries, nil
}

// Capabilities — состояние всех гейтов. Неизвестный set'у гейт показываем
// закрытым: у движка он трактуется так же.
func (s *FlagsService) Capabilities(ctx context.Context) map[string]bool {
	snap := s.gates.Snapshot()
	for _, c := range domain.AllCapabilities() {
		if _, ok := snap[c]; !ok {
			snap[c] = false
		}
	}
	return snap
}

// SetCapability переключает гейт и оставляет запись в журнале флагов.
// Previous/Current в записи — контекст контура на момент переключения,
// а не дифф: сам гейт живет в отдельном Redis-set.
func (s *FlagsService) SetCapability(ctx context.Context, capability string, open bool, actor, reason string) error {
	if !validCapability(capability) {
		return fmt.Errorf("unknown capability %q", capability)
	}
	if actor == "" {
		return fmt.Errorf("capability %s: actor is required", capability)
	}
	if reason == "" {
		return fmt.Errorf("capability %s: reason is required", capability)
	}

	// 1. Состояние гейта (Redis set + сигнал подписчикам)
	if err := s.gates.SetOpen(ctx, capability, open); err != nil {
		return fmt.Errorf("console: set capability %s: %w", capability, err)
	}

	// 2. Журнал. Гейт уже переключен, поэтому сбой аудита — громкая
	// ошибка, но не откат (та же логика, что у Store.mutate).
	action := "close_gate:" + capability
	if open {
		action = "open_gate:" + capability
	}
	current := s.store.Current(ctx)
	entry := &domain.FlagAuditEntry{
		ID:       uuid.NewString(),
		Actor:    actor,
		Action:   action,
		Reason:   reason,
		Previous: current,
		Current:  current,
	}
	if err := s.audit.InsertFlagAudit(ctx, entry); err != nil {
		s.logger.Error("gate audit write failed",
			zap.String("capability", capability), zap.String("actor", actor), zap.Error(err))
		return fmt.Errorf("console: gate switched but audit write failed: %w", err)
	}

	s.logger.Info("capability gate switched",
		zap.String("capability", capability),
		zap.Bool("open", open),
		zap.String("actor", actor),
		zap.String("reason", reason),
	)
	return nil
}

func validCapability(name string) bool {
	for _, c := range domain.AllCapabilities() {
		if c == name {
			return true
		}
	}
	return false
}
