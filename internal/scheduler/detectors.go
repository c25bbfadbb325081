package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// LeadSource — выборки категорий ожидающей работы (см. postgres.GovernorRepo)
type LeadSource interface {
	FindMoneyAtRisk(ctx context.Context, limit int) ([]domain.Lead, error)
	FindNearDeadlineContracts(ctx context.Context, limit int) ([]domain.Lead, error)
	FindStaleNonResponders(ctx context.Context, limit int) ([]domain.Lead, error)
	FindUnscored(ctx context.Context, limit int) ([]domain.Lead, error)
	FindMissingContactData(ctx context.Context, limit int) ([]domain.Lead, error)
	FindLongStale(ctx context.Context, limit int) ([]domain.Lead, error)
}

// Имена детекторов для счетчиков возможностей в статусе консоли
const (
	DetectorMoneyAtRisk     = "money_at_risk"
	DetectorNearDeadline    = "near_deadline_contracts"
	DetectorStaleSilent     = "stale_nonresponders"
	DetectorUnscored        = "unscored"
	DetectorMissingContacts = "missing_contact_data"
	DetectorLongStale       = "long_stale"
)

const defaultDetectLimit = 25

// Дневные цели агентов. Вшиты: это операционные нормативы пайплайна,
// а не пользовательский конфиг.
var goalTargets = map[string]int{
	domain.GoalContactNewLeads: 20,
	domain.GoalCloseContracts:  5,
	domain.GoalNurtureStale:    15,
	domain.GoalEnrichLeads:     40,
	domain.GoalFillContacts:    15,
	domain.GoalReengageCold:    10,
}

// GoalTarget — дневной норматив по ключу цели (0 = цель без норматива)
func GoalTarget(goalKey string) int {
	return goalTargets[goalKey]
}

type detectorSpec struct {
	name     string
	agent    string
	kind     domain.ActionKind
	goalKey  string
	priority int
	find     func(context.Context, int) ([]domain.Lead, error)
	describe func(n int) string
}

// DetectorSet — фиксированный упорядоченный список детекторов возможностей.
// Порядок = приоритет: деньги под угрозой всегда важнее реактивации.
type DetectorSet struct {
	specs  []detectorSpec
	logger *zap.Logger
	limit  int
}

func NewDetectorSet(leads LeadSource, logger *zap.Logger) *DetectorSet {
	return &DetectorSet{
		logger: logger.Named("detectors"),
		limit:  defaultDetectLimit,
		specs: []detectorSpec{
			{
				name: DetectorMoneyAtRisk, agent: domain.AgentProspector,
				kind: domain.KindMessageSend, goalKey: domain.GoalContactNewLeads, priority: 1,
				find: leads.FindMoneyAtRisk,
				describe: func(n int) string {
					return fmt.Sprintf("%d high-value leads have never been contacted", n)
				},
			},
			{
				name: DetectorNearDeadline, agent: domain.AgentCloser,
				kind: domain.KindContractSend, goalKey: domain.GoalCloseContracts, priority: 2,
				find: leads.FindNearDeadlineContracts,
				describe: func(n int) string {
					return fmt.Sprintf("%d contracts expire within 48 hours without a signature", n)
				},
			},
			{
				name: DetectorStaleSilent, agent: domain.AgentNurturer,
				kind: domain.KindMessageSend, goalKey: domain.GoalNurtureStale, priority: 3,
				find: leads.FindStaleNonResponders,
				describe: func(n int) string {
					return fmt.Sprintf("%d contacted leads silent for 3+ days", n)
				},
			},
			{
				name: DetectorUnscored, agent: domain.AgentEnricher,
				kind: domain.KindLeadEnrich, goalKey: domain.GoalEnrichLeads, priority: 4,
				find: leads.FindUnscored,
				describe: func(n int) string {
					return fmt.Sprintf("%d leads await enrichment and scoring", n)
				},
			},
			{
				name: DetectorMissingContacts, agent: domain.AgentEnricher,
				kind: domain.KindDataRequest, goalKey: domain.GoalFillContacts, priority: 5,
				find: leads.FindMissingContactData,
				describe: func(n int) string {
					return fmt.Sprintf("%d scored leads missing contact data", n)
				},
			},
			{
				name: DetectorLongStale, agent: domain.AgentNurturer,
				kind: domain.KindLeadReengage, goalKey: domain.GoalReengageCold, priority: 6,
				find: leads.FindLongStale,
				describe: func(n int) string {
					return fmt.Sprintf("%d leads dormant for 30+ days, eligible for re-engagement", n)
				},
			},
		},
	}
}

// Detect обходит детекторы по порядку, пропуская агентов на паузе.
// Сломанный детектор не валит тик: лог и дальше — остальные категории
// работы не должны страдать из-за одного кривого запроса.
func (d *DetectorSet) Detect(ctx context.Context, paused map[string]bool) []domain.CandidateAction {
	candidates := make([]domain.CandidateAction, 0, len(d.specs))

	for _, spec := range d.specs {
		if paused[spec.agent] {
			continue
		}
		leads, err := spec.find(ctx, d.limit)
		if err != nil {
			d.logger.Warn("Детектор не отработал",
				zap.String("detector", spec.name), zap.Error(err))
			continue
		}
		if len(leads) == 0 {
			continue
		}

		ids := make([]string, 0, len(leads))
		for _, l := range leads {
			ids = append(ids, l.ID)
		}
		candidates = append(candidates, domain.CandidateAction{
			Agent:         spec.agent,
			Kind:          spec.kind,
			GoalKey:       spec.goalKey,
			Priority:      spec.priority,
			LeadIDs:       ids,
			Count:         len(ids),
			Justification: spec.describe(len(ids)),
			Payload: map[string]any{
				"lead_ids": ids,
			},
		})
	}

	return candidates
}

// Counts — размеры всех категорий без учета пауз, для экрана статуса
func (d *DetectorSet) Counts(ctx context.Context) map[string]int {
	counts := make(map[string]int, len(d.specs))
	for _, spec := range d.specs {
		leads, err := spec.find(ctx, d.limit)
		if err != nil {
			d.logger.Warn("Счетчик возможностей не отработал",
				zap.String("detector", spec.name), zap.Error(err))
			continue
		}
		counts[spec.name] = len(leads)
	}
	return counts
}
