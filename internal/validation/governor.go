package validation

/*
Файл governor.go — оркестратор полного цикла проверки кандидата.

Порядок фиксированный:

  1. Политический гейт (master/active/kill/level) — Short-Circuit: системный
     отказ делает остальные проверки бессмысленными;
  2. Конвейер валидаторов — без обрыва, полный отчёт;
  3. Эскалация (HITL) — аддитивные критерии;
  4. Композитный балл.

Свод в рекомендацию по старшинству: block > escalate > hold > execute.
Каждый вердикт валидатора уходит в журнал событий (асинхронно), сами
решения пишет планировщик — синхронно.
*/

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/audit"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// GateChecker — политический гейт (см. policy.Gate)
type GateChecker interface {
	CanExecute(ctx context.Context, kind domain.ActionKind) domain.GateDecision
}

// ThresholdSource — эффективные пороги вида действия
type ThresholdSource interface {
	Effective(ctx context.Context, kind domain.ActionKind) domain.ActionThreshold
}

// FlagSource — текущее состояние флагов автономии
type FlagSource interface {
	Current(ctx context.Context) domain.AutonomyFlags
}

// MetricsSink — телеметрия цикла проверки. Реализация живёт в engine,
// здесь только контракт потребителя.
type MetricsSink interface {
	ObserveValidation(kind string, seconds float64)
	IncValidatorFailure(validator string)
	IncRecommendation(kind, recommendation string)
}

type Governor struct {
	gate       GateChecker
	thresholds ThresholdSource
	flags      FlagSource
	pipeline   *Pipeline
	escalator  *Escalator
	events     audit.EventSink
	metrics    MetricsSink
	logger     *zap.Logger
}

func NewGovernor(
	gate GateChecker,
	thresholds ThresholdSource,
	flags FlagSource,
	pipeline *Pipeline,
	escalator *Escalator,
	events audit.EventSink,
	metrics MetricsSink,
	logger *zap.Logger,
) *Governor {
	return &Governor{
		gate:       gate,
		thresholds: thresholds,
		flags:      flags,
		pipeline:   pipeline,
		escalator:  escalator,
		events:     events,
		metrics:    metrics,
		logger:     logger.Named("governor"),
	}
}

// RunFull — полный цикл проверки одного кандидата.
func (g *Governor) RunFull(ctx context.Context, vc domain.ValidationContext) domain.FullValidationResult {
	start := time.Now()
	if vc.TraceID == "" {
		vc.TraceID = uuid.New().String()
	}

	defer func() {
		if g.metrics != nil {
			g.metrics.ObserveValidation(vc.Kind.String(), time.Since(start).Seconds())
		}
	}()

	// 1. Политический гейт
	gateDec := g.gate.CanExecute(ctx, vc.Kind)
	if !gateDec.Allowed {
		res := domain.FullValidationResult{
			DryRun: gateDec.DryRun,
			Passed: make([]domain.ValidatorResult, 0),
			Failed: []domain.ValidatorResult{
				{Name: "policy_gate", Hard: true, Reason: gateDec.Reason},
			},
			EscalationReasons: make([]string, 0),
			Score:             Score(vc),
			Recommendation:    domain.RecommendBlock,
		}
		g.record(vc, res.Failed)
		g.finish(vc, res, start)
		return res
	}

	// 2. Конвейер валидаторов. Глобальный бюджет берём из флагов свежим
	// чтением — гейт свои флаги уже отработал, актуальность важнее
	// экономии одного GET.
	f := g.flags.Current(ctx)
	th := g.thresholds.Effective(ctx, vc.Kind)
	results := g.pipeline.Run(ctx, vc, th, f.MaxActionsPerHour)
	g.record(vc, results)

	passed := make([]domain.ValidatorResult, 0, len(results))
	failed := make([]domain.ValidatorResult, 0)
	for _, r := range results {
		if r.Passed {
			passed = append(passed, r)
		} else {
			failed = append(failed, r)
		}
	}

	// 3. Эскалация. require_confirmation добавляет свой критерий: без
	// подтверждения оператора автоматический запуск не существует,
	// кандидат уходит в очередь эскалаций как и любой другой HITL-случай
	escalationReasons := g.escalator.Evaluate(ctx, vc, th)
	if gateDec.RequiresConfirmation {
		escalationReasons = append(escalationReasons, "operator confirmation is required by autonomy flags")
	}

	// 4. Балл и свод
	res := domain.FullValidationResult{
		DryRun:            gateDec.DryRun,
		Passed:            passed,
		Failed:            failed,
		Escalate:          len(escalationReasons) > 0,
		EscalationReasons: escalationReasons,
		Score:             Score(vc),
	}

	switch {
	case res.HardBlocked():
		res.Recommendation = domain.RecommendBlock
	case res.Escalate:
		res.Recommendation = domain.RecommendEscalate
	case len(failed) > 0:
		res.Recommendation = domain.RecommendHold
	default:
		res.Recommendation = domain.RecommendExecute
		res.CanExecute = true
	}

	g.finish(vc, res, start)
	return res
}

// record отправляет вердикты валидаторов в журнал событий (Non-blocking)
func (g *Governor) record(vc domain.ValidationContext, results []domain.ValidatorResult) {
	if g.events == nil {
		return
	}
	for _, r := range results {
		g.events.Record(audit.EvaluationEvent{
			ID:        uuid.New().String(),
			TraceID:   vc.TraceID,
			LeadID:    vc.LeadID,
			Kind:      vc.Kind.String(),
			Validator: r.Name,
			Passed:    r.Passed,
			Hard:      r.Hard,
			Reason:    r.Reason,
		})
		if !r.Passed && g.metrics != nil {
			g.metrics.IncValidatorFailure(r.Name)
		}
	}
}

func (g *Governor) finish(vc domain.ValidationContext, res domain.FullValidationResult, start time.Time) {
	if g.metrics != nil {
		g.metrics.IncRecommendation(vc.Kind.String(), string(res.Recommendation))
	}
	g.logger.Info("Проверка кандидата завершена",
		zap.String("trace_id", vc.TraceID),
		zap.String("kind", vc.Kind.String()),
		zap.String("lead_id", vc.LeadID),
		zap.String("recommendation", string(res.Recommendation)),
		zap.Float64("score", res.Score),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("duration", time.Since(start)),
	)
}
