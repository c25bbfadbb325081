package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// GovernorRepo — единый репозиторий Control Plane поверх pgx-пула.
// Методы разложены по файлам по ресурсам (agents, decisions, approvals...).
type GovernorRepo struct {
	pool *pgxpool.Pool
}

func NewGovernorRepo(pool *pgxpool.Pool) *GovernorRepo {
	return &GovernorRepo{pool: pool}
}

// Ping проверяет доступность базы при старте
func (r *GovernorRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// GetAgentStates — все агенты конвейера (их четыре, порядок стабильный)
func (r *GovernorRepo) GetAgentStates(ctx context.Context) ([]domain.AgentState, error) {
	query := `
		SELECT name, status, current_task, last_run_at, updated_at
		FROM pipeline_agents ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query agent states: %w", err)
	}
	defer rows.Close()

	states := make([]domain.AgentState, 0)
	for rows.Next() {
		var s domain.AgentState
		var task sql.NullString
		var lastRun sql.NullTime

		if err := rows.Scan(&s.Name, &s.Status, &task, &lastRun, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan agent state: %w", err)
		}
		if task.Valid {
			s.CurrentTask = task.String
		}
		if lastRun.Valid {
			t := lastRun.Time
			s.LastRunAt = &t
		}
		states = append(states, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return states, nil
}

// UpdateAgentStatus меняет статус агента; при переходе в working
// фиксируем момент запуска.
func (r *GovernorRepo) UpdateAgentStatus(ctx context.Context, name string, status domain.AgentStatus, currentTask string) error {
	query := `
		UPDATE pipeline_agents
		SET status = $1,
		    current_task = NULLIF($2, ''),
		    last_run_at = CASE WHEN $1 = 'working' THEN NOW() ELSE last_run_at END,
		    updated_at = NOW()
		WHERE name = $3`

	ct, err := r.pool.Exec(ctx, query, string(status), currentTask, name)
	if err != nil {
		return fmt.Errorf("postgres: failed to update agent status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: agent %s not found", name)
	}
	return nil
}

// SetAgentPaused ставит/снимает паузу. Снятие возвращает агента в idle,
// даже если до паузы он был в error: оператор явно вернул его в ротацию.
func (r *GovernorRepo) SetAgentPaused(ctx context.Context, name string, paused bool) error {
	status := domain.AgentIdle
	if paused {
		status = domain.AgentPaused
	}

	query := `UPDATE pipeline_agents SET status = $1, updated_at = NOW() WHERE name = $2`
	ct, err := r.pool.Exec(ctx, query, string(status), name)
	if err != nil {
		return fmt.Errorf("postgres: failed to set agent pause: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: agent %s not found", name)
	}
	return nil
}

// SetAllPaused — массовая пауза/снятие для всего конвейера
func (r *GovernorRepo) SetAllPaused(ctx context.Context, paused bool) error {
	status := domain.AgentIdle
	if paused {
		status = domain.AgentPaused
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE pipeline_agents SET status = $1, updated_at = NOW()`, string(status))
	if err != nil {
		return fmt.Errorf("postgres: failed to set all paused: %w", err)
	}
	return nil
}

// GetTodayGoals — дневные цели на текущую дату
func (r *GovernorRepo) GetTodayGoals(ctx context.Context) ([]domain.AgentGoal, error) {
	query := `
		SELECT agent, goal_key, priority, target, current, goal_date
		FROM agent_goals
		WHERE goal_date = CURRENT_DATE
		ORDER BY priority, agent`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query goals: %w", err)
	}
	defer rows.Close()

	goals := make([]domain.AgentGoal, 0)
	for rows.Next() {
		var g domain.AgentGoal
		if err := rows.Scan(&g.Agent, &g.GoalKey, &g.Priority, &g.Target, &g.Current, &g.GoalDate); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return goals, nil
}

// IncrementGoal прибавляет прогресс к дневной цели. Строка на сегодня
// создаётся лениво: полуночный сброс — это просто новая дата.
func (r *GovernorRepo) IncrementGoal(ctx context.Context, g domain.AgentGoal) error {
	query := `
		INSERT INTO agent_goals (agent, goal_key, priority, target, current, goal_date)
		VALUES ($1, $2, $3, $4, $5, CURRENT_DATE)
		ON CONFLICT (agent, goal_key, goal_date)
		DO UPDATE SET current = agent_goals.current + EXCLUDED.current`

	_, err := r.pool.Exec(ctx, query, g.Agent, g.GoalKey, g.Priority, g.Target, g.Current)
	if err != nil {
		return fmt.Errorf("postgres: failed to increment goal: %w", err)
	}
	return nil
}
