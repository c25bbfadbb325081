package scheduler

import (
	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

/*
Файл signals.go — синтез ситуационных сигналов кандидата.

CRM не присылает готовые confidence/sentiment — контур выводит их из
карточки лида детерминированными эвристиками. Репрезентативный лид —
первый в выборке детектора (выборки уже отсортированы по срочности).

Базовая уверенность у каждой категории своя: у дожима договора playbook
отработан, у холодной реактивации — нет. Для внутренних действий
(обогащение, запрос данных) интент синтезируется как "internal":
неприменимость — не то же самое, что нераспознанность.
*/

var baseConfidence = map[string]float64{
	domain.GoalContactNewLeads: 0.85,
	domain.GoalCloseContracts:  0.90,
	domain.GoalNurtureStale:    0.70,
	domain.GoalEnrichLeads:     0.95,
	domain.GoalFillContacts:    0.90,
	domain.GoalReengageCold:    0.60,
}

// BuildContext собирает снимок для губернатора. lead может быть nil
// (карточка исчезла между выборкой и тиком) — тогда сигналы максимально
// консервативные: intent unknown уведет кандидата в эскалацию.
func BuildContext(c domain.CandidateAction, lead *domain.Lead, traceID string) domain.ValidationContext {
	vc := domain.ValidationContext{
		Kind:           c.Kind,
		TraceID:        traceID,
		RiskMultiplier: 1.0,
		Intent:         domain.IntentUnknown,
	}
	if len(c.LeadIDs) > 0 {
		vc.LeadID = c.LeadIDs[0]
	}
	if !c.Kind.Outbound() {
		vc.Intent = domain.IntentInternal
	}

	conf, ok := baseConfidence[c.GoalKey]
	if !ok {
		conf = 0.5
	}

	if lead != nil {
		if c.Kind.Outbound() && lead.Intent != "" {
			vc.Intent = lead.Intent
		}
		vc.Sentiment = sentimentFromIntent(vc.Intent)
		vc.Completeness = completenessOf(lead)

		// Живой отклик двигает уверенность в обе стороны
		switch lead.Intent {
		case domain.IntentInterested:
			conf += 0.05
		case domain.IntentObjection:
			conf -= 0.10
		}

		// Крупный договор — аккуратнее
		if c.Kind == domain.KindContractSend && lead.DealValue > 100000 {
			vc.RiskMultiplier = 0.8
		}
		// Ремень безопасности поверх SQL-фильтров детекторов
		if lead.OptedOut {
			vc.RiskMultiplier = 0
		}
	}

	vc.Confidence = clamp01(conf)
	return vc
}

func sentimentFromIntent(intent string) float64 {
	switch intent {
	case domain.IntentInterested:
		return 0.6
	case domain.IntentQuestion:
		return 0.2
	case domain.IntentObjection:
		return -0.6
	default:
		return 0
	}
}

// completenessOf — доля заполненных полей карточки из пяти значимых
func completenessOf(lead *domain.Lead) float64 {
	filled := 0
	if lead.Email != nil && *lead.Email != "" {
		filled++
	}
	if lead.Phone != nil && *lead.Phone != "" {
		filled++
	}
	if lead.Score != nil {
		filled++
	}
	if lead.Intent != "" && lead.Intent != domain.IntentUnknown {
		filled++
	}
	if lead.DealValue > 0 {
		filled++
	}
	return float64(filled) / 5
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
