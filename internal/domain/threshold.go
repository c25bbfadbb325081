package domain

// ActionThreshold — пороги и лимиты для одного вида действия.
// Дефолты вшиты в бинарь (см. defaultThresholds); админ может
// переопределить строку в Postgres, тогда она имеет приоритет.
type ActionThreshold struct {
	Kind            ActionKind `json:"kind"`
	MinConfidence   float64    `json:"min_confidence"`   // 0..1
	MinSentiment    float64    `json:"min_sentiment"`    // -1..1, -1 = проверка фактически выключена
	MinCompleteness float64    `json:"min_completeness"` // 0..1, полнота карточки лида
	RequiredLevel   int        `json:"required_level"`   // Дублирует таблицу видов для консоли

	MaxPerLeadHour int `json:"max_per_lead_hour"` // Лимит на лида за скользящий час
	MaxGlobalHour  int `json:"max_global_hour"`   // Лимит на вид действия за скользящий час

	CooldownMinutes int `json:"cooldown_minutes"` // Пауза между одинаковыми действиями по одному лиду

	// Порог «крупной сделки»: nil = вид не эскалирует по сумме.
	EscalateValueOver *float64 `json:"escalate_value_over,omitempty"`

	// Окно отправки, часы локального времени [Start, End). 0/24 = круглосуточно.
	SendWindowStart int `json:"send_window_start"`
	SendWindowEnd   int `json:"send_window_end"`
}

var contractValueGate = 50000.0

var defaultThresholds = map[ActionKind]ActionThreshold{
	KindMessageSend: {
		Kind:            KindMessageSend,
		MinConfidence:   0.6,
		MinSentiment:    -0.3,
		MinCompleteness: 0.5,
		RequiredLevel:   LevelSupervised,
		MaxPerLeadHour:  2,
		MaxGlobalHour:   20,
		CooldownMinutes: 240,
		SendWindowStart: 9,
		SendWindowEnd:   18,
	},
	KindContractSend: {
		Kind:              KindContractSend,
		MinConfidence:     0.75,
		MinSentiment:      0.0,
		MinCompleteness:   0.8,
		RequiredLevel:     LevelSupervised,
		MaxPerLeadHour:    1,
		MaxGlobalHour:     5,
		CooldownMinutes:   1440,
		EscalateValueOver: &contractValueGate,
		SendWindowStart:   9,
		SendWindowEnd:     18,
	},
	KindLeadEnrich: {
		Kind:            KindLeadEnrich,
		MinConfidence:   0.3,
		MinSentiment:    -1.0,
		MinCompleteness: 0.0,
		RequiredLevel:   LevelSuggest,
		MaxPerLeadHour:  1,
		MaxGlobalHour:   30,
		CooldownMinutes: 1440,
		SendWindowStart: 0,
		SendWindowEnd:   24,
	},
	KindLeadReengage: {
		Kind:            KindLeadReengage,
		MinConfidence:   0.5,
		MinSentiment:    -0.5,
		MinCompleteness: 0.4,
		RequiredLevel:   LevelSupervised,
		MaxPerLeadHour:  1,
		MaxGlobalHour:   10,
		CooldownMinutes: 10080, // Неделя: реактивация не должна превращаться в спам
		SendWindowStart: 9,
		SendWindowEnd:   18,
	},
	KindDataRequest: {
		Kind:            KindDataRequest,
		MinConfidence:   0.4,
		MinSentiment:    -0.8,
		MinCompleteness: 0.0,
		RequiredLevel:   LevelSuggest,
		MaxPerLeadHour:  1,
		MaxGlobalHour:   15,
		CooldownMinutes: 4320,
		SendWindowStart: 0,
		SendWindowEnd:   24,
	},
}

// DefaultThreshold — вшитый дефолт для вида. ok=false только для
// невалидного Kind (защита от дыры между enum и таблицей).
func DefaultThreshold(kind ActionKind) (ActionThreshold, bool) {
	t, ok := defaultThresholds[kind]
	return t, ok
}

// InSendWindow — попадает ли час (0..23) в окно отправки
func (t ActionThreshold) InSendWindow(hour int) bool {
	if t.SendWindowStart == 0 && t.SendWindowEnd == 24 {
		return true
	}
	return hour >= t.SendWindowStart && hour < t.SendWindowEnd
}
