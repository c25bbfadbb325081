package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra"
	"go.uber.org/zap"
)

// ApprovalRepository — очередь эскалаций (HITL)
type ApprovalRepository interface {
	GetApprovalByID(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	FindApprovals(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error)
	UpdateApprovalStatus(ctx context.Context, id string, status domain.ApprovalStatus, reviewerID, comment string) (string, error)
}

type ApprovalService struct {
	repo   ApprovalRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewApprovalService(repo ApprovalRepository, rdb *redis.Client, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		repo:   repo,
		rdb:    rdb,
		logger: logger.Named("approval-service"),
	}
}

func (s *ApprovalService) GetApproval(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	return s.repo.GetApprovalByID(ctx, id)
}

func (s *ApprovalService) GetApprovals(ctx context.Context, status string) ([]*domain.ApprovalRequest, error) {
	// Приводим к верхнему регистру, так как в константах PENDING/APPROVED
	st := domain.ApprovalStatus(strings.ToUpper(status))
	switch st {
	case domain.StatusPending, domain.StatusApproved, domain.StatusRejected:
	default:
		return nil, fmt.Errorf("unknown approval status %q", status)
	}
	return s.repo.FindApprovals(ctx, st)
}

// DecideApproval фиксирует решение оператора по эскалации.
// Мы передаем reviewerID для обеспечения подотчетности (Accountability).
// Одобрение — человеческая отметка в журнале: повторный dispatch отсюда
// не запускается, возможность заново найдет ближайший тик детекторов.
func (s *ApprovalService) DecideApproval(ctx context.Context, approvalID string, approved bool, reviewerID, comment string) error {
	if reviewerID == "" {
		return fmt.Errorf("approval decision: reviewer is required")
	}

	// 1. Определяем финальный статус на основе решения
	status := domain.StatusRejected
	if approved {
		status = domain.StatusApproved
	}

	// 2. Атомарно обновляем БД. UPDATE срабатывает только из PENDING,
	// поэтому повторное решение по той же заявке получит конфликт
	decisionID, err := s.repo.UpdateApprovalStatus(ctx, approvalID, status, reviewerID, comment)
	if err != nil {
		s.logger.Error("failed to persist approval decision",
			zap.String("approval_id", approvalID),
			zap.String("reviewer_id", reviewerID),
			zap.Error(err))
		return fmt.Errorf("approval decision: %w", err)
	}

	// 3. Уведомление операторам. Best-effort: решение уже в БД,
	// потерянный сигнал ничего не ломает (Fail-Safe)
	alert := fmt.Sprintf("approval %s: %s by %s", approvalID, status, reviewerID)
	if err := s.rdb.Publish(ctx, infra.RedisChanAlerts, alert).Err(); err != nil {
		s.logger.Warn("approval alert publish failed", zap.Error(err))
	}

	s.logger.Info("escalation decision processed",
		zap.String("approval_id", approvalID),
		zap.String("decision_id", decisionID),
		zap.String("reviewer", reviewerID),
		zap.String("result", string(status)))

	return nil
}
