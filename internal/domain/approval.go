package domain

import (
	"errors"
	"time"
)

// Статусы State Machine
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

var (
	ErrInvalidTransition = errors.New("invalid approval status transition")
	ErrAlreadyProcessed  = errors.New("approval request already processed")
)

// ApprovalRequest — эскалированное действие в очереди на ручной разбор (HITL).
// Решение ревьюера — учётная запись с ответственным лицом; повторный
// dispatch после approve не запускается автоматически.
type ApprovalRequest struct {
	ID         string         `json:"id"`
	DecisionID string         `json:"decision_id"` // Ссылка на строку журнала решений
	Agent      string         `json:"agent"`
	Kind       ActionKind     `json:"kind"`
	LeadID     string         `json:"lead_id"`
	Reasons    []string       `json:"reasons"` // Причины эскалации дословно
	Status     ApprovalStatus `json:"status"`

	ReviewerID *string `json:"reviewer_id,omitempty"`
	Comment    *string `json:"comment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanTransitionTo проверяет правила конечного автомата
func (a *ApprovalRequest) CanTransitionTo(next ApprovalStatus) error {
	if a.Status != StatusPending {
		return ErrAlreadyProcessed
	}
	if next == StatusPending {
		return ErrInvalidTransition
	}
	return nil
}
