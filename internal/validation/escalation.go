package validation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// Пороги эскалации зашиты константами: это граница «машина/человек»,
// и двигать её конфигом так же опасно, как и порог opt-out у Watchdog.
const (
	escalateConfidenceBelow = 0.5
	escalateSentimentBelow  = -0.5
)

// LeadSource — доступ к карточке лида для проверки стоимости сделки
type LeadSource interface {
	GetLeadByID(ctx context.Context, id string) (*domain.Lead, error)
}

// Escalator оценивает, нужен ли человек в контуре (HITL). В отличие от
// конвейера валидаторов, критерии аддитивны и не обрываются: все причины
// собираются разом, ревьюер видит полную картину.
type Escalator struct {
	leads  LeadSource
	logger *zap.Logger
}

func NewEscalator(leads LeadSource, logger *zap.Logger) *Escalator {
	return &Escalator{leads: leads, logger: logger.Named("escalator")}
}

// Evaluate возвращает список причин эскалации. Пустой список — машина
// справится сама.
func (e *Escalator) Evaluate(ctx context.Context, vc domain.ValidationContext, th domain.ActionThreshold) []string {
	reasons := make([]string, 0)

	// 1. Модель сама не уверена в кандидате
	if vc.Confidence < escalateConfidenceBelow {
		reasons = append(reasons, fmt.Sprintf("confidence %.2f below %.2f", vc.Confidence, escalateConfidenceBelow))
	}

	// 2. Собеседник раздражён — робот сделает только хуже
	if vc.Sentiment < escalateSentimentBelow {
		reasons = append(reasons, fmt.Sprintf("sentiment %.2f below %.2f", vc.Sentiment, escalateSentimentBelow))
	}

	// 3. Намерение не распознано
	if vc.Intent == domain.IntentUnknown {
		reasons = append(reasons, "lead intent is unknown")
	}

	// 4. Крупная сделка (критерий включается порогом вида действия)
	if th.EscalateValueOver != nil {
		reasons = append(reasons, e.highValueReasons(ctx, vc, *th.EscalateValueOver)...)
	}

	return reasons
}

func (e *Escalator) highValueReasons(ctx context.Context, vc domain.ValidationContext, valueOver float64) []string {
	lead, err := e.leads.GetLeadByID(ctx, vc.LeadID)
	if err != nil {
		// Стоимость не выяснили — лучше лишний раз позвать человека
		e.logger.Warn("deal value unavailable", zap.String("lead_id", vc.LeadID), zap.Error(err))
		return []string{"deal value could not be verified"}
	}
	if lead == nil {
		return []string{"lead record not found for deal value check"}
	}
	if lead.DealValue > valueOver {
		return []string{fmt.Sprintf("deal value %.0f exceeds review threshold %.0f", lead.DealValue, valueOver)}
	}
	return nil
}
