package postgres

/*
Файл approval_repo.go содержит реализацию методов для механизма Human-in-the-loop
(HITL, «человек в контуре»): очередь эскалированных действий губернатора.
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// GetApprovalByID получение деталей запроса для анализа.
func (r *GovernorRepo) GetApprovalByID(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	query := `SELECT id, decision_id, agent, kind, lead_id, reasons, status, reviewer_id, comment, created_at, updated_at
	          FROM approvals WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)

	app, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("approval not found: %w", err)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return app, nil
}

// FindApprovals фильтрация и выборка списка запросов (Decision Queue).
func (r *GovernorRepo) FindApprovals(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error) {
	// Базовый запрос
	query := `SELECT id, decision_id, agent, kind, lead_id, reasons, status, reviewer_id, comment, created_at, updated_at
              FROM approvals`

	var args []interface{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}

	query += " ORDER BY created_at DESC LIMIT 100"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query approvals: %w", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.ApprovalRequest, 0)

	for rows.Next() {
		app, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan approval: %w", err)
		}
		results = append(results, app)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}

	return results, nil
}

// CreateApproval создает запись в таблице approvals. Вызывается губернатором
// при Recommendation=escalate: оператор видит действие через Console API.
func (r *GovernorRepo) CreateApproval(ctx context.Context, app *domain.ApprovalRequest) error {
	query := `INSERT INTO approvals (id, decision_id, agent, kind, lead_id, reasons, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		app.ID, app.DecisionID, app.Agent, string(app.Kind), app.LeadID, app.Reasons, string(app.Status))
	if err != nil {
		return fmt.Errorf("postgres: failed to create approval request: %w", err)
	}
	return nil
}

// UpdateApprovalStatus атомарно обновляет статус заявки на подтверждение.
// Использует условие WHERE status = 'PENDING' для предотвращения Double Decision.
// Возвращает decision_id — ссылку на строку журнала для алерта оператору.
func (r *GovernorRepo) UpdateApprovalStatus(ctx context.Context, id string, status domain.ApprovalStatus, reviewerID, comment string) (string, error) {
	var decisionID string
	// RETURNING позволяет нам получить decision_id за один проход,
	// не делая предварительный SELECT (экономия ресурсов и исключение Race Condition)
	query := `
		UPDATE approvals
		SET status = $1,
		    reviewer_id = $2,
		    comment = $3,
		    updated_at = NOW()
		WHERE id = $4 AND status = 'PENDING'
		RETURNING decision_id`

	err := r.pool.QueryRow(ctx, query, string(status), reviewerID, comment, id).Scan(&decisionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Если строк не найдено, значит либо ID неверный,
			// либо (что чаще) решение по этой заявке уже было принято ранее
			return "", fmt.Errorf("approval request not found or already processed (id: %s)", id)
		}
		return "", fmt.Errorf("postgres: failed to update approval status: %w", err)
	}
	return decisionID, nil
}

// CountPendingApprovals — размер очереди на разбор (дашборд)
func (r *GovernorRepo) CountPendingApprovals(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM approvals WHERE status = 'PENDING'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count pending approvals: %w", err)
	}
	return n, nil
}

func scanApproval(row rowScanner) (*domain.ApprovalRequest, error) {
	var app domain.ApprovalRequest
	var kind string
	var reviewerID, comment sql.NullString // Используем для обработки NULL из БД

	err := row.Scan(
		&app.ID,
		&app.DecisionID,
		&app.Agent,
		&kind,
		&app.LeadID,
		&app.Reasons,
		&app.Status,
		&reviewerID,
		&comment,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Kind = domain.ActionKind(kind)
	// Маппим NULL значения в строки (если есть)
	if reviewerID.Valid {
		val := reviewerID.String
		app.ReviewerID = &val // Берем адрес
	}
	if comment.Valid {
		val := comment.String
		app.Comment = &val
	}
	return &app, nil
}
