package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// GetThreshold возвращает админский override порогов для вида.
// nil без ошибки = override не задан, действует вшитый дефолт.
func (r *GovernorRepo) GetThreshold(ctx context.Context, kind domain.ActionKind) (*domain.ActionThreshold, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT kind, min_confidence, min_sentiment, min_completeness, required_level,
		       max_per_lead_hour, max_global_hour, cooldown_minutes,
		       escalate_value_over, send_window_start, send_window_end
		FROM action_thresholds WHERE kind = $1`, string(kind))

	t, err := scanThreshold(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get threshold: %w", err)
	}
	return t, nil
}

// ListThresholds — все overrides (консоль дорисовывает дефолты сама)
func (r *GovernorRepo) ListThresholds(ctx context.Context) ([]domain.ActionThreshold, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT kind, min_confidence, min_sentiment, min_completeness, required_level,
		       max_per_lead_hour, max_global_hour, cooldown_minutes,
		       escalate_value_over, send_window_start, send_window_end
		FROM action_thresholds ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list thresholds: %w", err)
	}
	defer rows.Close()

	results := make([]domain.ActionThreshold, 0)
	for rows.Next() {
		t, err := scanThreshold(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan threshold: %w", err)
		}
		results = append(results, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// UpsertThreshold сохраняет override целиком (частичных патчей нет:
// консоль всегда шлёт полную строку, так проще аудит)
func (r *GovernorRepo) UpsertThreshold(ctx context.Context, t domain.ActionThreshold) error {
	query := `
		INSERT INTO action_thresholds
			(kind, min_confidence, min_sentiment, min_completeness, required_level,
			 max_per_lead_hour, max_global_hour, cooldown_minutes,
			 escalate_value_over, send_window_start, send_window_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (kind) DO UPDATE SET
			min_confidence = EXCLUDED.min_confidence,
			min_sentiment = EXCLUDED.min_sentiment,
			min_completeness = EXCLUDED.min_completeness,
			required_level = EXCLUDED.required_level,
			max_per_lead_hour = EXCLUDED.max_per_lead_hour,
			max_global_hour = EXCLUDED.max_global_hour,
			cooldown_minutes = EXCLUDED.cooldown_minutes,
			escalate_value_over = EXCLUDED.escalate_value_over,
			send_window_start = EXCLUDED.send_window_start,
			send_window_end = EXCLUDED.send_window_end,
			updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query,
		string(t.Kind), t.MinConfidence, t.MinSentiment, t.MinCompleteness, t.RequiredLevel,
		t.MaxPerLeadHour, t.MaxGlobalHour, t.CooldownMinutes,
		t.EscalateValueOver, t.SendWindowStart, t.SendWindowEnd,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert threshold: %w", err)
	}
	return nil
}

// DeleteThreshold снимает override, возвращая вид на вшитый дефолт
func (r *GovernorRepo) DeleteThreshold(ctx context.Context, kind domain.ActionKind) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM action_thresholds WHERE kind = $1`, string(kind))
	if err != nil {
		return fmt.Errorf("postgres: delete threshold: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: threshold override not found")
	}
	return nil
}

func scanThreshold(row rowScanner) (*domain.ActionThreshold, error) {
	var t domain.ActionThreshold
	var kind string
	var escalateOver sql.NullFloat64

	err := row.Scan(
		&kind, &t.MinConfidence, &t.MinSentiment, &t.MinCompleteness, &t.RequiredLevel,
		&t.MaxPerLeadHour, &t.MaxGlobalHour, &t.CooldownMinutes,
		&escalateOver, &t.SendWindowStart, &t.SendWindowEnd,
	)
	if err != nil {
		return nil, err
	}

	t.Kind = domain.ActionKind(kind)
	if escalateOver.Valid {
		v := escalateOver.Float64
		t.EscalateValueOver = &v
	}
	return &t, nil
}
