package validation

/*
Файл pipeline.go — конвейер валидаторов кандидата. Порядок фиксирован
и значим (от дешёвых проверок к дорогим, от качества сигнала к лимитам),
но конвейер не обрывается: прогоняются все валидаторы, отчёт полный —
оператор должен видеть всё, что не так с кандидатом, а не первую причину.

Классы провалов:
- Hard (opt-out, нулевой риск-множитель, закрытый гейт) — повтор бессмысленен,
  итог block;
- Soft (пороги, лимиты, cooldown, окно) — ситуация временная, итог hold.

Любая ошибка провайдера (БД, Redis) валит соответствующий валидатор,
а не пропускает его: недоступность данных не открывает контур (Fail-Safe).
*/

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// Имена валидаторов. Это контракт с телеметрией (evaluation_events):
// менять нельзя, по ним считает Watchdog и дашборд.
const (
	ValidatorConfidence   = "confidence"
	ValidatorSentiment    = "sentiment"
	ValidatorCompleteness = "completeness"
	ValidatorRisk         = "risk_multiplier"
	ValidatorRateLimit    = "rate_limit"
	ValidatorOptOut       = "opt_out"
	ValidatorCooldown     = "cooldown"
	ValidatorSendWindow   = "send_window"
	ValidatorGate         = "capability_gate"
)

// HistorySource — скользящие окна по журналу решений
type HistorySource interface {
	CountApprovedForLeadLastHour(ctx context.Context, leadID string, kind domain.ActionKind) (int, error)
	CountApprovedKindLastHour(ctx context.Context, kind domain.ActionKind) (int, error)
	CountApprovedTotalLastHour(ctx context.Context) (int, error)
	LastApprovedAt(ctx context.Context, leadID string, kind domain.ActionKind) (*time.Time, error)
}

// OptOutSource — юридический стоп-лист
type OptOutSource interface {
	IsLeadOptedOut(ctx context.Context, id string) (bool, error)
}

// GateSource — capability-гейты (L1-кэш, см. flags.GateManager)
type GateSource interface {
	IsOpen(capability string) bool
}

type Pipeline struct {
	history HistorySource
	optOuts OptOutSource
	gates   GateSource
	logger  *zap.Logger

	now func() time.Time // Подменяется в тестах
	loc *time.Location   // Таймзона окна отправки
}

func NewPipeline(history HistorySource, optOuts OptOutSource, gates GateSource, loc *time.Location, logger *zap.Logger) *Pipeline {
	if loc == nil {
		loc = time.Local
	}
	return &Pipeline{
		history: history,
		optOuts: optOuts,
		gates:   gates,
		logger:  logger.Named("pipeline"),
		now:     time.Now,
		loc:     loc,
	}
}

// Run прогоняет все валидаторы по порядку. maxActionsPerHour приходит из
// флагов (глобальный бюджет поверх лимитов вида), 0 = без бюджета.
func (p *Pipeline) Run(ctx context.Context, vc domain.ValidationContext, th domain.ActionThreshold, maxActionsPerHour int) []domain.ValidatorResult {
	results := make([]domain.ValidatorResult, 0, 9)

	// 1. Уверенность модели
	results = append(results, checkFloor(ValidatorConfidence, vc.Confidence, th.MinConfidence))

	// 2. Тон последней коммуникации
	results = append(results, checkFloor(ValidatorSentiment, vc.Sentiment, th.MinSentiment))

	// 3. Полнота карточки
	results = append(results, checkFloor(ValidatorCompleteness, vc.Completeness, th.MinCompleteness))

	// 4. Риск-множитель: ноль — это вето, а не «низкий балл»
	results = append(results, p.checkRisk(vc))

	// 5. Rate-лимиты: лид/час, вид/час, глобальный бюджет
	results = append(results, p.checkRateLimit(ctx, vc, th, maxActionsPerHour))

	// 6. Opt-out (юридически жёсткий)
	results = append(results, p.checkOptOut(ctx, vc))

	// 7. Cooldown по виду действия для этого лида
	results = append(results, p.checkCooldown(ctx, vc, th))

	// 8. Окно отправки
	results = append(results, p.checkSendWindow(vc, th))

	// 9. Capability-гейт (жёсткий)
	results = append(results, p.checkGate(vc))

	return results
}

func checkFloor(name string, value, minimum float64) domain.ValidatorResult {
	if value < minimum {
		return domain.ValidatorResult{
			Name:   name,
			Reason: fmt.Sprintf("%s %.2f below minimum %.2f", name, value, minimum),
		}
	}
	return domain.ValidatorResult{Name: name, Passed: true}
}

func (p *Pipeline) checkRisk(vc domain.ValidationContext) domain.ValidatorResult {
	if vc.RiskMultiplier <= 0 {
		return domain.ValidatorResult{
			Name:   ValidatorRisk,
			Hard:   true,
			Reason: fmt.Sprintf("risk multiplier %.2f is a hard veto", vc.RiskMultiplier),
		}
	}
	return domain.ValidatorResult{Name: ValidatorRisk, Passed: true}
}

func (p *Pipeline) checkRateLimit(ctx context.Context, vc domain.ValidationContext, th domain.ActionThreshold, maxActionsPerHour int) domain.ValidatorResult {
	// Персональный лимит лида
	perLead, err := p.history.CountApprovedForLeadLastHour(ctx, vc.LeadID, vc.Kind)
	if err != nil {
		p.logger.Warn("rate history unavailable", zap.Error(err))
		return domain.ValidatorResult{Name: ValidatorRateLimit, Reason: "rate history unavailable"}
	}
	if th.MaxPerLeadHour > 0 && perLead >= th.MaxPerLeadHour {
		return domain.ValidatorResult{
			Name: ValidatorRateLimit,
			Reason: fmt.Sprintf("per-lead limit reached: %d/%d %s in the last hour",
				perLead, th.MaxPerLeadHour, vc.Kind),
		}
	}

	// Глобальный лимит вида
	perKind, err := p.history.CountApprovedKindLastHour(ctx, vc.Kind)
	if err != nil {
		p.logger.Warn("rate history unavailable", zap.Error(err))
		return domain.ValidatorResult{Name: ValidatorRateLimit, Reason: "rate history unavailable"}
	}
	if th.MaxGlobalHour > 0 && perKind >= th.MaxGlobalHour {
		return domain.ValidatorResult{
			Name: ValidatorRateLimit,
			Reason: fmt.Sprintf("global limit reached: %d/%d %s in the last hour",
				perKind, th.MaxGlobalHour, vc.Kind),
		}
	}

	// Бюджет всего контура из флагов
	if maxActionsPerHour > 0 {
		total, err := p.history.CountApprovedTotalLastHour(ctx)
		if err != nil {
			p.logger.Warn("rate history unavailable", zap.Error(err))
			return domain.ValidatorResult{Name: ValidatorRateLimit, Reason: "rate history unavailable"}
		}
		if total >= maxActionsPerHour {
			return domain.ValidatorResult{
				Name: ValidatorRateLimit,
				Reason: fmt.Sprintf("hourly action budget reached: %d/%d across all kinds",
					total, maxActionsPerHour),
			}
		}
	}

	return domain.ValidatorResult{Name: ValidatorRateLimit, Passed: true}
}

func (p *Pipeline) checkOptOut(ctx context.Context, vc domain.ValidationContext) domain.ValidatorResult {
	optedOut, err := p.optOuts.IsLeadOptedOut(ctx, vc.LeadID)
	if err != nil {
		// Статус не выяснили — считаем отписанным
		p.logger.Warn("opt-out status unavailable", zap.String("lead_id", vc.LeadID), zap.Error(err))
		return domain.ValidatorResult{Name: ValidatorOptOut, Hard: true, Reason: "opt-out status unavailable"}
	}
	if optedOut {
		return domain.ValidatorResult{Name: ValidatorOptOut, Hard: true, Reason: "lead has opted out of outreach"}
	}
	return domain.ValidatorResult{Name: ValidatorOptOut, Passed: true}
}

func (p *Pipeline) checkCooldown(ctx context.Context, vc domain.ValidationContext, th domain.ActionThreshold) domain.ValidatorResult {
	if th.CooldownMinutes <= 0 {
		return domain.ValidatorResult{Name: ValidatorCooldown, Passed: true}
	}

	lastAt, err := p.history.LastApprovedAt(ctx, vc.LeadID, vc.Kind)
	if err != nil {
		p.logger.Warn("cooldown history unavailable", zap.Error(err))
		return domain.ValidatorResult{Name: ValidatorCooldown, Reason: "cooldown history unavailable"}
	}
	if lastAt == nil {
		return domain.ValidatorResult{Name: ValidatorCooldown, Passed: true}
	}

	cooldown := time.Duration(th.CooldownMinutes) * time.Minute
	readyAt := lastAt.Add(cooldown)
	if now := p.now(); now.Before(readyAt) {
		// Оператору важно не «нельзя», а «когда можно»
		return domain.ValidatorResult{
			Name: ValidatorCooldown,
			Reason: fmt.Sprintf("cooldown active for another %s",
				readyAt.Sub(now).Round(time.Minute)),
		}
	}
	return domain.ValidatorResult{Name: ValidatorCooldown, Passed: true}
}

func (p *Pipeline) checkSendWindow(vc domain.ValidationContext, th domain.ActionThreshold) domain.ValidatorResult {
	hour := p.now().In(p.loc).Hour()
	if !th.InSendWindow(hour) {
		return domain.ValidatorResult{
			Name: ValidatorSendWindow,
			Reason: fmt.Sprintf("current hour %02d:00 outside send window %02d:00-%02d:00",
				hour, th.SendWindowStart, th.SendWindowEnd),
		}
	}
	return domain.ValidatorResult{Name: ValidatorSendWindow, Passed: true}
}

func (p *Pipeline) checkGate(vc domain.ValidationContext) domain.ValidatorResult {
	capability := vc.Kind.Capability()
	if capability == "" || !p.gates.IsOpen(capability) {
		return domain.ValidatorResult{
			Name:   ValidatorGate,
			Hard:   true,
			Reason: fmt.Sprintf("capability gate %q is closed", capability),
		}
	}
	return domain.ValidatorResult{Name: ValidatorGate, Passed: true}
}
