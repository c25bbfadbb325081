package domain

import "time"

// DecisionOutcome — чем закончился прогон кандидата
type DecisionOutcome string

const (
	OutcomeExecuted  DecisionOutcome = "executed"  // Dispatch прошёл
	OutcomeDryRun    DecisionOutcome = "dry_run"   // Всё одобрено, побочный эффект подавлен
	OutcomeHeld      DecisionOutcome = "held"      // Мягкий отказ валидаторов
	OutcomeEscalated DecisionOutcome = "escalated" // Передано человеку
	OutcomeBlocked   DecisionOutcome = "blocked"   // Жёсткое вето или запрет гейта
	OutcomeFailed    DecisionOutcome = "failed"    // Ошибка исполнения или паника pipeline
)

// Decision — одна строка журнала решений. Журнал append-only:
// никаких UPDATE, исправление — только новой записью.
// Инвариант шедулера: ровно одна Decision на прогон кандидата,
// включая аварийные завершения.
type Decision struct {
	ID      string `json:"id"`
	TraceID string `json:"trace_id"`

	Agent  string     `json:"agent"` // prospector / closer / nurturer / enricher / system
	Kind   ActionKind `json:"kind"`
	LeadID string     `json:"lead_id,omitempty"`

	Situation         string   `json:"situation"`          // Что увидел детектор («3 лида без контакта, $120k на кону»)
	OptionsConsidered []string `json:"options_considered"` // Кандидаты, между которыми выбирали
	Decision          string   `json:"decision"`           // Что решили сделать
	Reasoning         string   `json:"reasoning"`          // Почему (провалы валидаторов, причины эскалации)

	Outcome  DecisionOutcome `json:"outcome"`
	Success  bool            `json:"success"`
	Approved bool            `json:"approved"` // Прошло gate+валидаторы; учитывается rate-лимитами

	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// CountsTowardRate — какие решения занимают слот в скользящих окнах.
// Dry-run тоже занимает: одобрение состоялось, подавлен только эффект.
func (d Decision) CountsTowardRate() bool {
	return d.Approved
}
