package audit

import "time"

// EvaluationEvent — сработка одного валидатора по одному кандидату.
// Это форензика: журнал решений хранит итог, события — почему именно.
// Отдельно от Decision: событий на порядок больше, пишутся пачками.
type EvaluationEvent struct {
	ID      string `json:"id"`       // UUID события
	TraceID string `json:"trace_id"` // Сквозной ID просчёта
	LeadID  string `json:"lead_id"`  // По кому считали (может быть пусто для system-прогонов)
	Kind    string `json:"kind"`     // Вид действия

	Validator string `json:"validator"` // confidence / sentiment / rate_limit / opt_out / ...
	Passed    bool   `json:"passed"`
	Hard      bool   `json:"hard"`             // Жёсткий класс провала
	Reason    string `json:"reason,omitempty"` // Человекочитаемо, как в отчёте

	Timestamp time.Time `json:"timestamp"`
}
