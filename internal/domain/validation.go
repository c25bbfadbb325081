package domain

// Recommendation — итог полного прогона губернатора по кандидату.
// Приоритет при сборке: Block > Escalate > Hold > Execute.
type Recommendation string

const (
	RecommendExecute  Recommendation = "execute"  // Все проверки пройдены, можно исполнять
	RecommendHold     Recommendation = "hold"     // Мягкий отказ: подождать и попробовать позже
	RecommendEscalate Recommendation = "escalate" // Передать человеку (HITL)
	RecommendBlock    Recommendation = "block"    // Жёсткое вето, повтор бессмысленен
)

// GateDecision — ответ политического гейта (быстрые проверки флагов и уровня)
type GateDecision struct {
	Allowed              bool   `json:"allowed"`
	Reason               string `json:"reason"` // Человекочитаемо: первое сработавшее правило
	DryRun               bool   `json:"dry_run"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	LevelCurrent         int    `json:"level_current"`
	LevelRequired        int    `json:"level_required"`
}

// ValidationContext — входной снимок для pipeline. Собирается один раз,
// валидаторы его не мутируют.
type ValidationContext struct {
	LeadID         string     `json:"lead_id"`
	Kind           ActionKind `json:"kind"`
	Confidence     float64    `json:"confidence"`      // 0..1, уверенность модели в действии
	Sentiment      float64    `json:"sentiment"`       // -1..1, тон последней коммуникации
	Completeness   float64    `json:"completeness"`    // 0..1, полнота данных лида
	RiskMultiplier float64    `json:"risk_multiplier"` // 0..1, штраф за риск; 0 = вето
	Intent         string     `json:"intent"`          // interested / question / objection / unknown
	TraceID        string     `json:"trace_id,omitempty"`
}

// ValidatorResult — вердикт одного валидатора.
// Hard=true означает «жёсткий» класс: его провал даёт Block, а не Hold.
type ValidatorResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
	Hard   bool   `json:"hard,omitempty"`
}

// FullValidationResult — полный отчёт: gate + валидаторы + эскалация + скоринг
type FullValidationResult struct {
	CanExecute bool `json:"can_execute"`
	DryRun     bool `json:"dry_run"`

	Passed []ValidatorResult `json:"passed"`
	Failed []ValidatorResult `json:"failed"`

	Escalate          bool     `json:"escalate"`
	EscalationReasons []string `json:"escalation_reasons,omitempty"`

	Score          float64        `json:"score"` // Композитная оценка, телеметрия и ранжирование
	Recommendation Recommendation `json:"recommendation"`
}

// HardBlocked — был ли хотя бы один жёсткий провал
func (r FullValidationResult) HardBlocked() bool {
	for _, v := range r.Failed {
		if v.Hard {
			return true
		}
	}
	return false
}
