package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra"
	"go.uber.org/zap"
)

// AgentRepository описывает требования к хранилищу данных об агентах
type AgentRepository interface {
	GetAgentStates(ctx context.Context) ([]domain.AgentState, error)
	SetAgentPaused(ctx context.Context, name string, paused bool) error
	SetAllPaused(ctx context.Context, paused bool) error
	GetUnifiedDashboard(ctx context.Context) (*domain.UnifiedDashboard, error)
	GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error)
}

type AgentService struct {
	repo   AgentRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewAgentService(repo AgentRepository, rdb *redis.Client, logger *zap.Logger) *AgentService {
	return &AgentService{
		repo:   repo,
		rdb:    rdb,
		logger: logger.Named("agent-service"),
	}
}

// setPaused — унифицированный механизм паузы.
// Обновляет БД и транслирует сигнал в Redis.
func (s *AgentService) setPaused(ctx context.Context, name string, paused bool, actionName string) error {
	// 1. Persistence Layer: шедулер перечитывает статусы каждый тик,
	// поэтому запись в Postgres уже останавливает агента
	if err := s.repo.SetAgentPaused(ctx, name, paused); err != nil {
		s.logger.Error("failed to update agent pause in DB",
			zap.String("agent", name),
			zap.String("action", actionName),
			zap.Error(err))
		return fmt.Errorf("%s: database error: %w", actionName, err)
	}

	// 2. Real-time Signaling: best-effort для дашбордов и живых подписчиков
	payload := fmt.Sprintf("%s:%t", name, paused)
	if err := s.rdb.Publish(ctx, infra.RedisChanAgentPause, payload).Err(); err != nil {
		s.logger.Warn("pause signal delivery failed",
			zap.String("action", actionName),
			zap.String("channel", infra.RedisChanAgentPause),
			zap.Error(err))
	} else {
		s.logger.Info("agent pause state updated",
			zap.String("agent", name),
			zap.String("action", actionName),
			zap.Bool("paused", paused))
	}

	return nil
}

func (s *AgentService) PauseAgent(ctx context.Context, name string) error {
	return s.setPaused(ctx, name, true, "agent-pause")
}

func (s *AgentService) ResumeAgent(ctx context.Context, name string) error {
	return s.setPaused(ctx, name, false, "agent-resume")
}

// SetAllPaused — массовый стоп/старт конвейера одним действием.
// Отдельный UPDATE вместо цикла по агентам: либо встали все, либо никто.
func (s *AgentService) SetAllPaused(ctx context.Context, paused bool) error {
	if err := s.repo.SetAllPaused(ctx, paused); err != nil {
		s.logger.Error("failed to set pipeline-wide pause", zap.Bool("paused", paused), zap.Error(err))
		return fmt.Errorf("pipeline pause: database error: %w", err)
	}

	payload := fmt.Sprintf("all:%t", paused)
	if err := s.rdb.Publish(ctx, infra.RedisChanAgentPause, payload).Err(); err != nil {
		s.logger.Warn("pipeline pause signal failed", zap.Error(err))
	}

	s.logger.Info("pipeline-wide pause state updated", zap.Bool("paused", paused))
	return nil
}

// ListAgents возвращает состояния всех агентов конвейера.
// Используется для отображения основной таблицы в Console API.
func (s *AgentService) ListAgents(ctx context.Context) ([]domain.AgentState, error) {
	agents, err := s.repo.GetAgentStates(ctx)
	if err != nil {
		s.logger.Error("failed to list agents from repository", zap.Error(err))
		return nil, fmt.Errorf("service: could not fetch agents: %w", err)
	}

	// Гарантируем, что фронтенд получит пустой массив [], а не null,
	// если конвейер еще не засеян агентами
	if agents == nil {
		return []domain.AgentState{}, nil
	}

	s.logger.Debug("agents listed successfully", zap.Int("count", len(agents)))
	return agents, nil
}

// Dashboard — сводка для главного экрана консоли.
// Тяжелые агрегаты; при росте нагрузки сюда просится минутный кэш в Redis.
func (s *AgentService) Dashboard(ctx context.Context) (*domain.UnifiedDashboard, error) {
	return s.repo.GetUnifiedDashboard(ctx)
}

func (s *AgentService) GlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	return s.repo.GetGlobalStats(ctx)
}
