package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra"
	"github.com/xela07ax/salesai-autopilot/internal/scheduler"
	"go.uber.org/zap"
)

// LoopStatusSource — снимок конвейера из Postgres
type LoopStatusSource interface {
	GetAgentStates(ctx context.Context) ([]domain.AgentState, error)
	GetTodayGoals(ctx context.Context) ([]domain.AgentGoal, error)
	RecentDecisions(ctx context.Context, limit int) ([]domain.Decision, error)
	DecisionsForLead(ctx context.Context, leadID string, limit int) ([]domain.Decision, error)
}

// Watchdog — read-only проверка порогов самоостановки
type Watchdog interface {
	Check(ctx context.Context) domain.PauseVerdict
}

// LoopService отдает состояние шедулера и принимает ручные команды.
// Консоль — отдельный процесс: сам тик исполняет движок, отсюда уходит
// только сигнал через Redis Pub/Sub.
type LoopService struct {
	source    LoopStatusSource
	detectors *scheduler.DetectorSet
	watchdog  Watchdog
	rdb       *redis.Client
	logger    *zap.Logger
}

func NewLoopService(source LoopStatusSource, detectors *scheduler.DetectorSet, watchdog Watchdog, rdb *redis.Client, logger *zap.Logger) *LoopService {
	return &LoopService{
		source:    source,
		detectors: detectors,
		watchdog:  watchdog,
		rdb:       rdb,
		logger:    logger.Named("loop-service"),
	}
}

const (
	statusRecentLimit    = 20
	defaultDecisionLimit = 50
	maxDecisionLimit     = 500
)

// Status собирает снимок конвейера: агенты, дневные цели, последние
// решения и размеры очередей детекторов (наблюдение, без исполнения).
func (s *LoopService) Status(ctx context.Context) (*domain.LoopStatus, error) {
	agents, err := s.source.GetAgentStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("console: agent states: %w", err)
	}
	goals, err := s.source.GetTodayGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("console: goals: %w", err)
	}
	recent, err := s.source.RecentDecisions(ctx, statusRecentLimit)
	if err != nil {
		return nil, fmt.Errorf("console: recent decisions: %w", err)
	}
	return &domain.LoopStatus{
		Agents:          agents,
		Goals:           goals,
		RecentDecisions: recent,
		Opportunities:   s.detectors.Counts(ctx),
	}, nil
}

// KickTick — ручной запуск тика. Движок подписан на канал и прогонит
// цикл у себя; если сигнал не доставлен, оператор должен узнать об этом
// сразу, а не ждать тика, который не случится.
func (s *LoopService) KickTick(ctx context.Context) error {
	if err := s.rdb.Publish(ctx, infra.RedisChanLoopKick, "console").Err(); err != nil {
		s.logger.Error("loop kick signal failed", zap.Error(err))
		return fmt.Errorf("console: kick signal not delivered: %w", err)
	}
	s.logger.Info("manual loop tick requested")
	return nil
}

// WatchdogVerdict — положение контура относительно порогов самоостановки.
// Чтение без побочных эффектов: решение о паузе принимает только сторож движка.
func (s *LoopService) WatchdogVerdict(ctx context.Context) domain.PauseVerdict {
	return s.watchdog.Check(ctx)
}

// Decisions — журнал решений, свежие сверху
func (s *LoopService) Decisions(ctx context.Context, limit int) ([]domain.Decision, error) {
	list, err := s.source.RecentDecisions(ctx, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("console: decisions: %w", err)
	}
	return list, nil
}

// LeadDecisions — вся история решений по одному лиду
func (s *LoopService) LeadDecisions(ctx context.Context, leadID string, limit int) ([]domain.Decision, error) {
	list, err := s.source.DecisionsForLead(ctx, leadID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("console: lead decisions: %w", err)
	}
	return list, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultDecisionLimit
	}
	if limit > maxDecisionLimit {
		return maxDecisionLimit
	}
	return limit
}
