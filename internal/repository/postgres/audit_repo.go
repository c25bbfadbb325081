package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/salesai-autopilot/internal/audit"
)

// EventRepo — отдельный репозиторий телеметрии валидаторов.
// Живёт своей жизнью (пишет пачками из фонового воркера), поэтому
// не смешан с GovernorRepo.
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) WriteBatch(ctx context.Context, events []audit.EvaluationEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице evaluation_events
	numFields := 9
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9)

		vals = append(vals,
			e.ID, e.TraceID, nullIfEmpty(e.LeadID), e.Kind,
			e.Validator, e.Passed, e.Hard, e.Reason, e.Timestamp,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO evaluation_events (id, trace_id, lead_id, kind, validator, passed, hard, reason, created_at) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.pool.Exec(ctx, query, vals...)
	return err
}

// CountOptOutsLastHour — сработки opt-out за скользящий час.
// Именно по событиям, а не по решениям: opt-out может сработать
// и в прогоне, не дошедшем до dispatch.
func (r *EventRepo) CountOptOutsLastHour(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM evaluation_events
		WHERE validator = 'opt_out' AND NOT passed
		  AND created_at > NOW() - INTERVAL '60 minutes'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count opt-outs: %w", err)
	}
	return n, nil
}

// ValidatorFailuresLastHour — провалы по валидаторам для дашборда
func (r *EventRepo) ValidatorFailuresLastHour(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT validator, COUNT(*)
		FROM evaluation_events
		WHERE NOT passed AND created_at > NOW() - INTERVAL '60 minutes'
		GROUP BY validator`)
	if err != nil {
		return nil, fmt.Errorf("postgres: validator failures: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan validator failure: %w", err)
		}
		result[name] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return result, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
