package domain

import "time"

type LeadStatus string

const (
	LeadNew          LeadStatus = "new"
	LeadContacted    LeadStatus = "contacted"
	LeadResponded    LeadStatus = "responded"
	LeadQualified    LeadStatus = "qualified"
	LeadContractSent LeadStatus = "contract_sent"
	LeadWon          LeadStatus = "won"
	LeadLost         LeadStatus = "lost"
)

// Lead — проекция карточки лида, достаточная для детекторов и валидаторов.
// CRUD-семантика карточек живёт в соседнем сервисе; здесь только чтение.
type Lead struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Company string     `json:"company,omitempty"`
	Status  LeadStatus `json:"status"`

	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`

	DealValue float64  `json:"deal_value"`      // Оценка сделки, USD
	Score     *float64 `json:"score,omitempty"` // nil = лид ещё не скорился
	Intent    string   `json:"intent,omitempty"`

	OptedOut bool `json:"opted_out"` // Запрет на любые исходящие; юридически жёсткий

	LastContactAt    *time.Time `json:"last_contact_at,omitempty"`
	LastReplyAt      *time.Time `json:"last_reply_at,omitempty"`
	ContractSentAt   *time.Time `json:"contract_sent_at,omitempty"`
	ContractDeadline *time.Time `json:"contract_deadline,omitempty"`
	EnrichedAt       *time.Time `json:"enriched_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasContactData — есть ли канал для исходящего сообщения
func (l Lead) HasContactData() bool {
	return (l.Email != nil && *l.Email != "") || (l.Phone != nil && *l.Phone != "")
}
