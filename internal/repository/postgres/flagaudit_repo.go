package postgres

import (
	"context"
	"fmt"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// InsertFlagAudit — immutable запись о мутации флагов. Пишется строго
// до best-effort уведомлений: аудит durable, алерт — нет.
func (r *GovernorRepo) InsertFlagAudit(ctx context.Context, e *domain.FlagAuditEntry) error {
	query := `
		INSERT INTO flag_audit (id, actor, action, reason, previous, current)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		e.ID, e.Actor, e.Action, e.Reason, e.Previous, e.Current,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert flag audit: %w", err)
	}
	return nil
}

// ListFlagAudit — история переключений для консоли, свежие сверху
func (r *GovernorRepo) ListFlagAudit(ctx context.Context, limit int) ([]domain.FlagAuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, actor, action, reason, previous, current, created_at
		FROM flag_audit
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query flag audit: %w", err)
	}
	defer rows.Close()

	results := make([]domain.FlagAuditEntry, 0, limit)
	for rows.Next() {
		var e domain.FlagAuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Reason, &e.Previous, &e.Current, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan flag audit: %w", err)
		}
		results = append(results, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}
