package postgres

import (
	"context"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

func (r *GovernorRepo) GetUnifiedDashboard(ctx context.Context) (*domain.UnifiedDashboard, error) {
	d := &domain.UnifiedDashboard{}

	// 1. Состояние агентов конвейера
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('idle', 'working')),
			COUNT(*) FILTER (WHERE status = 'paused')
		FROM pipeline_agents`).Scan(&d.Activity.ActiveAgents, &d.Incidents.PausedAgents)
	if err != nil {
		return nil, err
	}

	// 2. Очередь эскалаций
	pending, err := r.CountPendingApprovals(ctx)
	if err != nil {
		return nil, err
	}
	d.Governance.PendingApprovals = pending

	// 3. Метрики журнала решений за последние 60 минут.
	// PERCENTILE_CONT даёт честный P95 длительности полного прогона.
	var approved, dryRun int64
	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'executed'),
			COUNT(*) FILTER (WHERE outcome = 'blocked'),
			COUNT(*) FILTER (WHERE outcome = 'held'),
			COUNT(*) FILTER (WHERE outcome = 'failed'),
			COUNT(*) FILTER (WHERE approved),
			COUNT(*) FILTER (WHERE outcome = 'dry_run'),
			COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY duration_ms), 0)
		FROM decisions
		WHERE created_at > NOW() - INTERVAL '60 minutes'`).Scan(
		&d.Activity.DecisionsLastHour,
		&d.Activity.ExecutedLastHour,
		&d.Governance.BlockedLastHour,
		&d.Governance.HeldLastHour,
		&d.Incidents.FailedHour,
		&approved,
		&dryRun,
		&d.Quality.P95PipelineMS,
	)
	if err != nil {
		return nil, err
	}

	if approved > 0 {
		d.Quality.DryRunShare = float64(dryRun) / float64(approved)
	}
	return d, nil
}

// GetGlobalStats — агрегаты по всей истории решений
func (r *GovernorRepo) GetGlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	s := &domain.GlobalStats{TopKinds: make(map[string]int64)}

	var blocked int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE outcome = 'blocked')
		FROM decisions`).Scan(&s.TotalDecisions, &blocked)
	if err != nil {
		return nil, err
	}
	if s.TotalDecisions > 0 {
		s.BlockedShare = float64(blocked) / float64(s.TotalDecisions)
	}

	// Топ видов действий
	rows, err := r.pool.Query(ctx, `
		SELECT kind, COUNT(*) AS cnt
		FROM decisions
		GROUP BY kind
		ORDER BY cnt DESC
		LIMIT 10`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var cnt int64
		if err := rows.Scan(&kind, &cnt); err != nil {
			return nil, err
		}
		s.TopKinds[kind] = cnt
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	// Активность по часам за последние сутки
	hourRows, err := r.pool.Query(ctx, `
		SELECT TO_CHAR(date_trunc('hour', created_at), 'HH24:00'), COUNT(*)
		FROM decisions
		WHERE created_at > NOW() - INTERVAL '24 hours'
		GROUP BY date_trunc('hour', created_at)
		ORDER BY date_trunc('hour', created_at)`)
	if err != nil {
		return nil, err
	}
	defer hourRows.Close()
	for hourRows.Next() {
		var p domain.ActivityPoint
		if err := hourRows.Scan(&p.Hour, &p.Count); err != nil {
			return nil, err
		}
		s.HourlyActivity = append(s.HourlyActivity, p)
	}
	return s, hourRows.Err()
}
