package validation

import "github.com/xela07ax/salesai-autopilot/internal/domain"

// Веса композитного балла. Сумма базовых весов равна 1.0 — балл живёт
// в [0,1] до умножения на риск-множитель.
const (
	weightConfidence   = 0.35
	weightSentiment    = 0.20
	weightCompleteness = 0.25
	weightIntent       = 0.20
)

// Score — приоритет кандидата для ранжирования и отчётности. Балл не
// участвует в решении «можно/нельзя» (это работа валидаторов), он
// отвечает на вопрос «кого первым».
func Score(vc domain.ValidationContext) float64 {
	base := weightConfidence*vc.Confidence +
		weightSentiment*normalizeSentiment(vc.Sentiment) +
		weightCompleteness*vc.Completeness +
		weightIntent*domain.IntentWeight(vc.Intent)

	// Риск-множитель масштабирует итог: 0 обнуляет балл так же,
	// как валидатор риска блокирует действие
	return base * vc.RiskMultiplier
}

// normalizeSentiment переводит тон из [-1,1] в [0,1]
func normalizeSentiment(s float64) float64 {
	if s < -1 {
		s = -1
	}
	if s > 1 {
		s = 1
	}
	return (s + 1) / 2
}
