package domain

import "time"

type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"    // Ждёт следующего тика
	AgentWorking AgentStatus = "working" // Исполняет кандидата прямо сейчас
	AgentPaused  AgentStatus = "paused"  // Снят с ротации оператором
	AgentError   AgentStatus = "error"   // Последний запуск упал; из ротации не выводится
)

// Имена агентов конвейера. Закрытый список: детекторы и цели
// адресуются по этим именам.
const (
	AgentProspector = "prospector" // Первичный контакт по деньгам под риском
	AgentCloser     = "closer"     // Дожим договоров с горящим дедлайном
	AgentNurturer   = "nurturer"   // Прогрев молчунов и реактивация
	AgentEnricher   = "enricher"   // Обогащение, скоринг, добыча контактов
)

func AllAgents() []string {
	return []string{AgentProspector, AgentCloser, AgentNurturer, AgentEnricher}
}

type AgentState struct {
	Name        string      `json:"name"`
	Status      AgentStatus `json:"status"`
	CurrentTask string      `json:"current_task,omitempty"` // Краткое описание текущего кандидата
	LastRunAt   *time.Time  `json:"last_run_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// AgentGoal — дневной счётчик агента. «Сегодняшние» цели — это строки
// с goal_date = CURRENT_DATE: сброс в полночь получается бесплатно,
// без cron-джобы.
type AgentGoal struct {
	Agent    string    `json:"agent"`
	GoalKey  string    `json:"goal_key"` // contact_new_leads, close_contracts, nurture_stale, enrich_leads...
	Priority int       `json:"priority"` // Меньше = важнее
	Target   int       `json:"target"`
	Current  int       `json:"current"`
	GoalDate time.Time `json:"goal_date"`
}

// Ключи дневных целей
const (
	GoalContactNewLeads = "contact_new_leads"
	GoalCloseContracts  = "close_contracts"
	GoalNurtureStale    = "nurture_stale"
	GoalEnrichLeads     = "enrich_leads"
	GoalFillContacts    = "fill_contacts"
	GoalReengageCold    = "reengage_cold"
)
