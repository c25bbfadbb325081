package scheduler

/*
Файл loop.go — цикл возможностей (Opportunity Loop).

Контракт тика жёсткий:

 1. Тики не перекрываются — sync.Mutex на весь прогон. За тик исполняется
    ровно один кандидат, параллельные тики могли бы выбрать его дважды.
 2. Если кандидат выбран, журнал получает РОВНО ОДНУ Decision — включая
    панику пайплайна или исполнителя (defer/recover, Outcome=failed).
    Тик никогда не роняет процесс.
 3. Проверка и запись решения по паре (лид, вид) сериализованы keyed-мьютексом:
    закрывает гонку check-then-append у rate-лимитов и cooldown.

Источник правды о паузах — Postgres: состояния агентов читаются свежими
в начале каждого тика, подписок не нужно.
*/

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra"
)

// AgentStore — состояния и дневные цели агентов
type AgentStore interface {
	GetAgentStates(ctx context.Context) ([]domain.AgentState, error)
	UpdateAgentStatus(ctx context.Context, name string, status domain.AgentStatus, currentTask string) error
	GetTodayGoals(ctx context.Context) ([]domain.AgentGoal, error)
	IncrementGoal(ctx context.Context, g domain.AgentGoal) error
}

// DecisionStore — журнал решений (запись синхронная: rate-лимиты следующего
// тика должны видеть эту строку)
type DecisionStore interface {
	InsertDecision(ctx context.Context, d *domain.Decision) error
	RecentDecisions(ctx context.Context, limit int) ([]domain.Decision, error)
}

// ApprovalStore — очередь эскалаций для операторов
type ApprovalStore interface {
	CreateApproval(ctx context.Context, app *domain.ApprovalRequest) error
}

// LeadGetter — карточка репрезентативного лида для синтеза сигналов
type LeadGetter interface {
	GetLeadByID(ctx context.Context, id string) (*domain.Lead, error)
}

// Validator — полный цикл проверки (см. validation.Governor)
type Validator interface {
	RunFull(ctx context.Context, vc domain.ValidationContext) domain.FullValidationResult
}

// Dispatcher — исполнители действий (см. connectors.Registry)
type Dispatcher interface {
	Call(ctx context.Context, kind domain.ActionKind, payload []byte) ([]byte, error)
}

// MetricsSink — телеметрия тиков
type MetricsSink interface {
	ObserveTick(seconds float64)
	IncTick(status string)
	IncDecision(agent, kind, outcome string)
	IncDispatchError(capability string)
}

type Loop struct {
	mu    sync.Mutex // Тики строго по одному
	keyed keyedMutex // Сериализация (лид, вид) вокруг проверки+записи

	agents    AgentStore
	decisions DecisionStore
	approvals ApprovalStore
	leads     LeadGetter
	detectors *DetectorSet
	governor  Validator
	dispatch  Dispatcher
	rdb       *redis.Client
	metrics   MetricsSink
	logger    *zap.Logger

	now func() time.Time
}

func NewLoop(
	agents AgentStore,
	decisions DecisionStore,
	approvals ApprovalStore,
	leads LeadGetter,
	detectors *DetectorSet,
	governor Validator,
	dispatch Dispatcher,
	rdb *redis.Client,
	metrics MetricsSink,
	logger *zap.Logger,
) *Loop {
	return &Loop{
		agents:    agents,
		decisions: decisions,
		approvals: approvals,
		leads:     leads,
		detectors: detectors,
		governor:  governor,
		dispatch:  dispatch,
		rdb:       rdb,
		metrics:   metrics,
		logger:    logger.Named("loop"),
		now:       time.Now,
	}
}

// RunTick — один прогон цикла возможностей. Потокобезопасен.
func (l *Loop) RunTick(ctx context.Context) domain.TickResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := l.now()
	res := l.runTick(ctx)
	if l.metrics != nil {
		l.metrics.ObserveTick(time.Since(start).Seconds())
		l.metrics.IncTick(string(res.Status))
	}
	return res
}

func (l *Loop) runTick(ctx context.Context) domain.TickResult {
	// 1. Состояния агентов
	states, err := l.agents.GetAgentStates(ctx)
	if err != nil {
		l.logger.Error("Состояния агентов недоступны", zap.Error(err))
		return domain.TickResult{Status: domain.TickError, Message: fmt.Sprintf("agent states unavailable: %v", err)}
	}

	paused := make(map[string]bool)
	allPaused := len(states) > 0
	for _, s := range states {
		if s.Status == domain.AgentPaused {
			paused[s.Name] = true
		} else {
			allPaused = false
		}
	}
	if allPaused {
		return domain.TickResult{Status: domain.TickPaused, Message: "all agents are paused"}
	}

	// 2. Детекторы в порядке приоритета
	candidates := l.detectors.Detect(ctx, paused)
	if len(candidates) == 0 {
		return domain.TickResult{Status: domain.TickIdle, Message: "no opportunities found"}
	}

	// 3. Победитель — наименьший номер приоритета; тай-брейк — порядок списка
	winner := candidates[0]
	options := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Priority < winner.Priority {
			winner = c
		}
		options = append(options, fmt.Sprintf("[P%d] %s: %s", c.Priority, c.Kind, c.Justification))
	}

	// 4. Прогон победителя (ровно одна Decision, что бы ни случилось)
	return l.processCandidate(ctx, winner, options)
}

// processCandidate ведет кандидата от проверки до исхода. Именованный
// возврат нужен recover-ветке: паника тоже обязана вернуть TickResult.
func (l *Loop) processCandidate(ctx context.Context, c domain.CandidateAction, options []string) (res domain.TickResult) {
	start := l.now()
	traceID := uuid.New().String()

	d := &domain.Decision{
		ID:                uuid.New().String(),
		TraceID:           traceID,
		Agent:             c.Agent,
		Kind:              c.Kind,
		Situation:         c.Justification,
		OptionsConsidered: options,
		Decision:          fmt.Sprintf("dispatch %s for %d leads", c.Kind, c.Count),
	}
	if len(c.LeadIDs) > 0 {
		d.LeadID = c.LeadIDs[0]
	}

	// Сериализуем проверку и запись по паре (лид, вид). Замок берётся до
	// регистрации defer с записью решения: по LIFO он отпускается после
	// InsertDecision, иначе check-then-append остаётся гонкой.
	unlock := l.keyed.Lock(d.LeadID + "|" + c.Kind.String())
	defer unlock()

	agentStatus := domain.AgentIdle

	// Журнал прежде всего: запись решения и возврат агента — в defer,
	// чтобы отработать и после паники
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Паника в тике",
				zap.Any("panic", r),
				zap.String("trace_id", traceID),
				zap.ByteString("stack", debug.Stack()),
			)
			d.Outcome = domain.OutcomeFailed
			d.Success = false
			d.Reasoning = fmt.Sprintf("tick panicked: %v", r)
			agentStatus = domain.AgentError
			res = domain.TickResult{Status: domain.TickError, Message: "tick panicked", Action: &c, Decision: d}
		}

		d.DurationMS = time.Since(start).Milliseconds()
		if err := l.decisions.InsertDecision(ctx, d); err != nil {
			l.logger.Error("Решение не записано", zap.String("trace_id", traceID), zap.Error(err))
		}
		if l.metrics != nil {
			l.metrics.IncDecision(d.Agent, d.Kind.String(), string(d.Outcome))
		}
		if err := l.agents.UpdateAgentStatus(ctx, c.Agent, agentStatus, ""); err != nil {
			l.logger.Warn("Агент не возвращён из working", zap.String("agent", c.Agent), zap.Error(err))
		}
	}()

	if err := l.agents.UpdateAgentStatus(ctx, c.Agent, domain.AgentWorking, c.Justification); err != nil {
		l.logger.Warn("Агент не отмечен working", zap.String("agent", c.Agent), zap.Error(err))
	}

	// Репрезентативный лид; nil терпим — сигналы будут консервативными
	lead, err := l.leads.GetLeadByID(ctx, d.LeadID)
	if err != nil {
		l.logger.Warn("Карточка лида недоступна", zap.String("lead_id", d.LeadID), zap.Error(err))
	}

	vc := BuildContext(c, lead, traceID)
	verdict := l.governor.RunFull(ctx, vc)
	d.Reasoning = summarizeVerdict(verdict)

	switch verdict.Recommendation {
	case domain.RecommendBlock:
		d.Outcome = domain.OutcomeBlocked
		return domain.TickResult{Status: domain.TickCompleted,
			Message: "candidate blocked: " + firstReason(verdict), Action: &c, Decision: d}

	case domain.RecommendEscalate:
		d.Outcome = domain.OutcomeEscalated
		l.fileEscalation(ctx, d, c, verdict)
		return domain.TickResult{Status: domain.TickCompleted,
			Message: "candidate escalated for human review", Action: &c, Decision: d}

	case domain.RecommendHold:
		d.Outcome = domain.OutcomeHeld
		return domain.TickResult{Status: domain.TickCompleted,
			Message: "candidate held: " + firstReason(verdict), Action: &c, Decision: d}
	}

	// Execute: одобрение состоялось — решение занимает слот в rate-окнах,
	// даже если сам dispatch дальше упадет (повтор сразу = риск спама)
	d.Approved = true

	if verdict.DryRun {
		d.Outcome = domain.OutcomeDryRun
		d.Success = true
		return domain.TickResult{Status: domain.TickCompleted,
			Message: "dry-run: action approved and recorded, dispatch suppressed", Action: &c, Decision: d}
	}

	payload, err := json.Marshal(c.Payload)
	if err != nil {
		d.Outcome = domain.OutcomeFailed
		d.Reasoning = fmt.Sprintf("payload marshal failed: %v", err)
		agentStatus = domain.AgentError
		return domain.TickResult{Status: domain.TickError, Message: d.Reasoning, Action: &c, Decision: d}
	}

	if _, err := l.dispatch.Call(ctx, c.Kind, payload); err != nil {
		l.logger.Error("Исполнитель отказал",
			zap.String("kind", c.Kind.String()), zap.String("trace_id", traceID), zap.Error(err))
		if l.metrics != nil {
			l.metrics.IncDispatchError(c.Kind.Capability())
		}
		d.Outcome = domain.OutcomeFailed
		d.Reasoning = d.Reasoning + "; dispatch failed: " + err.Error()
		agentStatus = domain.AgentError
		return domain.TickResult{Status: domain.TickError,
			Message: "dispatch failed: " + err.Error(), Action: &c, Decision: d}
	}

	d.Outcome = domain.OutcomeExecuted
	d.Success = true

	// Дневная цель растет на размер обработанной пачки
	if err := l.agents.IncrementGoal(ctx, domain.AgentGoal{
		Agent:    c.Agent,
		GoalKey:  c.GoalKey,
		Priority: c.Priority,
		Target:   GoalTarget(c.GoalKey),
		Current:  c.Count,
		GoalDate: start,
	}); err != nil {
		l.logger.Warn("Счетчик цели не обновлён", zap.String("goal", c.GoalKey), zap.Error(err))
	}

	l.logger.Info("Действие исполнено",
		zap.String("agent", c.Agent),
		zap.String("kind", c.Kind.String()),
		zap.Int("count", c.Count),
		zap.String("trace_id", traceID),
	)
	return domain.TickResult{Status: domain.TickCompleted,
		Message: fmt.Sprintf("%s dispatched for %d leads", c.Kind, c.Count), Action: &c, Decision: d}
}

// fileEscalation ставит запрос в очередь операторов; ошибка не фатальна
// для тика — Decision с outcome=escalated уже зафиксирует факт.
func (l *Loop) fileEscalation(ctx context.Context, d *domain.Decision, c domain.CandidateAction, verdict domain.FullValidationResult) {
	app := &domain.ApprovalRequest{
		ID:         uuid.New().String(),
		DecisionID: d.ID,
		Agent:      c.Agent,
		Kind:       c.Kind,
		LeadID:     d.LeadID,
		Reasons:    verdict.EscalationReasons,
		Status:     domain.StatusPending,
	}
	if err := l.approvals.CreateApproval(ctx, app); err != nil {
		l.logger.Error("Эскалация не поставлена в очередь", zap.String("decision_id", d.ID), zap.Error(err))
		return
	}
	// Best-effort сигнал операторам
	msg := fmt.Sprintf("escalation: %s %s (%s)", c.Agent, c.Kind, strings.Join(verdict.EscalationReasons, "; "))
	if err := l.rdb.Publish(ctx, infra.RedisChanAlerts, msg).Err(); err != nil {
		l.logger.Warn("Сигнал об эскалации не доставлен", zap.Error(err))
	}
}

// Status — снимок конвейера для консоли
func (l *Loop) Status(ctx context.Context) (*domain.LoopStatus, error) {
	states, err := l.agents.GetAgentStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: agent states: %w", err)
	}
	goals, err := l.agents.GetTodayGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: goals: %w", err)
	}
	recent, err := l.decisions.RecentDecisions(ctx, 20)
	if err != nil {
		return nil, fmt.Errorf("scheduler: recent decisions: %w", err)
	}
	return &domain.LoopStatus{
		Agents:          states,
		Goals:           goals,
		RecentDecisions: recent,
		Opportunities:   l.detectors.Counts(ctx),
	}, nil
}

// Run гоняет тики по таймеру до отмены контекста
func (l *Loop) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	l.logger.Info("Цикл возможностей запущен", zap.Duration("interval", every))
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Цикл возможностей остановлен")
			return
		case <-ticker.C:
			res := l.RunTick(ctx)
			l.logger.Debug("Тик завершен",
				zap.String("status", string(res.Status)), zap.String("message", res.Message))
		}
	}
}

// ListenKicks слушает ручные пинки из консоли (форсированный тик).
// Канал подписки переживает обрывы Redis: переподключение с бэкоффом.
func (l *Loop) ListenKicks(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := l.rdb.Subscribe(ctx, infra.RedisChanLoopKick)
		if _, err := pubsub.Receive(ctx); err != nil {
			l.logger.Warn("Подписка на kick-канал не удалась, повтор через 5с", zap.Error(err))
			_ = pubsub.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		l.logger.Info("Подписка на ручные тики активна", zap.String("channel", infra.RedisChanLoopKick))
		for msg := range pubsub.Channel() {
			l.logger.Info("Ручной тик по сигналу консоли", zap.String("payload", msg.Payload))
			res := l.RunTick(ctx)
			l.logger.Info("Ручной тик завершен",
				zap.String("status", string(res.Status)), zap.String("message", res.Message))
		}
		_ = pubsub.Close()
	}
}

func summarizeVerdict(v domain.FullValidationResult) string {
	switch v.Recommendation {
	case domain.RecommendExecute:
		return fmt.Sprintf("all %d validators passed, score %.2f", len(v.Passed), v.Score)
	case domain.RecommendEscalate:
		return "escalated: " + strings.Join(v.EscalationReasons, "; ")
	default:
		reasons := make([]string, 0, len(v.Failed))
		for _, f := range v.Failed {
			reasons = append(reasons, f.Reason)
		}
		return string(v.Recommendation) + ": " + strings.Join(reasons, "; ")
	}
}

func firstReason(v domain.FullValidationResult) string {
	if len(v.Failed) > 0 {
		return v.Failed[0].Reason
	}
	return "no reason recorded"
}

// keyedMutex — мьютекс по строковому ключу. Ключей конечное число
// (лиды × виды), карта живет с процессом.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
