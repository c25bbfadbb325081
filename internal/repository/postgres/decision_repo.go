package postgres

/*
Файл decision_repo.go — журнал решений губернатора (append-only).
Этот же журнал является источником истины для rate-лимитов, cooldown
и монитора самоостановки: никаких отдельных счётчиков, только окна по
created_at. UPDATE по таблице запрещён дизайном.
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// InsertDecision пишет строку синхронно: лимиты следующего просчёта
// обязаны видеть это решение (read-your-writes).
func (r *GovernorRepo) InsertDecision(ctx context.Context, d *domain.Decision) error {
	query := `
		INSERT INTO decisions
			(id, trace_id, agent, kind, lead_id, situation, options_considered,
			 decision, reasoning, outcome, success, approved, duration_ms)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		d.ID, d.TraceID, d.Agent, string(d.Kind), d.LeadID, d.Situation, d.OptionsConsidered,
		d.Decision, d.Reasoning, string(d.Outcome), d.Success, d.Approved, d.DurationMS,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert decision: %w", err)
	}
	return nil
}

// CountApprovedForLeadLastHour — одобренные действия вида по конкретному
// лиду за скользящий час (персональный rate-лимит).
func (r *GovernorRepo) CountApprovedForLeadLastHour(ctx context.Context, leadID string, kind domain.ActionKind) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM decisions
		WHERE lead_id = $1 AND kind = $2 AND approved
		  AND created_at > NOW() - INTERVAL '60 minutes'`,
		leadID, string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count approved for lead: %w", err)
	}
	return n, nil
}

// CountApprovedKindLastHour — одобренные действия вида по всем лидам
// (глобальный лимит вида).
func (r *GovernorRepo) CountApprovedKindLastHour(ctx context.Context, kind domain.ActionKind) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM decisions
		WHERE kind = $1 AND approved
		  AND created_at > NOW() - INTERVAL '60 minutes'`,
		string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count approved kind: %w", err)
	}
	return n, nil
}

// CountApprovedTotalLastHour — все одобренные действия за час
// (глобальный бюджет max_actions_per_hour).
func (r *GovernorRepo) CountApprovedTotalLastHour(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM decisions
		WHERE approved AND created_at > NOW() - INTERVAL '60 minutes'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count approved total: %w", err)
	}
	return n, nil
}

// LastApprovedAt — момент последнего одобренного действия вида по лиду.
// nil = действий не было, cooldown не применяется.
func (r *GovernorRepo) LastApprovedAt(ctx context.Context, leadID string, kind domain.ActionKind) (*time.Time, error) {
	var t time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT created_at
		FROM decisions
		WHERE lead_id = $1 AND kind = $2 AND approved
		ORDER BY created_at DESC
		LIMIT 1`,
		leadID, string(kind)).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: last approved at: %w", err)
	}
	return &t, nil
}

// HourlyFailureMetrics — сбои и эскалации за скользящий час для Watchdog
func (r *GovernorRepo) HourlyFailureMetrics(ctx context.Context) (failed int, escalated int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE outcome = 'failed'),
			COUNT(*) FILTER (WHERE outcome = 'escalated')
		FROM decisions
		WHERE created_at > NOW() - INTERVAL '60 minutes'`).Scan(&failed, &escalated)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: hourly failure metrics: %w", err)
	}
	return failed, escalated, nil
}

// RecentDecisions — хвост журнала для консоли и статуса конвейера
func (r *GovernorRepo) RecentDecisions(ctx context.Context, limit int) ([]domain.Decision, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, trace_id, agent, kind, lead_id, situation, options_considered,
		       decision, reasoning, outcome, success, approved, duration_ms, created_at
		FROM decisions
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query decisions: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Decision, 0, limit)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// DecisionsForLead — история по одному лиду (карточка в консоли)
func (r *GovernorRepo) DecisionsForLead(ctx context.Context, leadID string, limit int) ([]domain.Decision, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, trace_id, agent, kind, lead_id, situation, options_considered,
		       decision, reasoning, outcome, success, approved, duration_ms, created_at
		FROM decisions
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query lead decisions: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Decision, 0)
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

func scanDecision(rows pgx.Rows) (domain.Decision, error) {
	var d domain.Decision
	var leadID sql.NullString
	var kind, outcome string

	err := rows.Scan(
		&d.ID, &d.TraceID, &d.Agent, &kind, &leadID, &d.Situation, &d.OptionsConsidered,
		&d.Decision, &d.Reasoning, &outcome, &d.Success, &d.Approved, &d.DurationMS, &d.CreatedAt,
	)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("postgres: failed to scan decision: %w", err)
	}

	d.Kind = domain.ActionKind(kind)
	d.Outcome = domain.DecisionOutcome(outcome)
	if leadID.Valid {
		d.LeadID = leadID.String
	}
	return d, nil
}
