package domain

// HealthMetrics — снимок скользящего часа для монитора самоостановки
type HealthMetrics struct {
	ErrorsLastHour      int `json:"errors_last_hour"`      // Decisions с outcome=failed
	EscalationsLastHour int `json:"escalations_last_hour"` // Decisions с outcome=escalated
	OptOutsLastHour     int `json:"opt_outs_last_hour"`    // Сработки opt-out валидатора
}

// PauseVerdict — ответ shouldSelfPause. Metrics отдаём всегда,
// даже при ShouldPause=false: консоль показывает запас до порога.
type PauseVerdict struct {
	ShouldPause bool          `json:"should_pause"`
	Reason      string        `json:"reason,omitempty"`
	Metrics     HealthMetrics `json:"metrics"`
}

// Порог opt-out вшит и не настраивается через флаги: три отписки за час —
// это сигнал о системной ошибке таргетинга, его нельзя «подкрутить».
const OptOutPauseThreshold = 3
