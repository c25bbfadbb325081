package domain

// TickStatus — итог одного прогона шедулера
type TickStatus string

const (
	TickCompleted TickStatus = "completed" // Кандидат прогнан (включая hold/escalate/block)
	TickIdle      TickStatus = "idle"      // Ни один детектор ничего не нашёл
	TickPaused    TickStatus = "paused"    // Все агенты на паузе
	TickError     TickStatus = "error"     // Dispatch или pipeline упали
)

// CandidateAction — возможность, найденная детектором.
// За тик исполняется ровно один кандидат: победитель по приоритету.
type CandidateAction struct {
	Agent    string     `json:"agent"`
	Kind     ActionKind `json:"kind"`
	GoalKey  string     `json:"goal_key"`
	Priority int        `json:"priority"` // Меньше = срочнее; тай-брейк — порядок детекторов

	LeadIDs       []string `json:"lead_ids"`
	Count         int      `json:"count"`         // Сколько лидов затронет действие
	Justification string   `json:"justification"` // Обязательно с числами: «4 договора, дедлайн < 48ч»

	// Payload передаётся исполнителю как есть (structpb на границе gRPC)
	Payload map[string]any `json:"payload,omitempty"`
}

// TickResult — то, что видит оператор после runLoopTick
type TickResult struct {
	Status   TickStatus       `json:"status"`
	Message  string           `json:"message"`
	Action   *CandidateAction `json:"action,omitempty"`
	Decision *Decision        `json:"decision,omitempty"`
}

// LoopStatus — снимок конвейера для консоли
type LoopStatus struct {
	Agents          []AgentState   `json:"agents"`
	Goals           []AgentGoal    `json:"goals"` // Только сегодняшние
	RecentDecisions []Decision     `json:"recent_decisions"`
	Opportunities   map[string]int `json:"opportunities"` // Детектор -> размер очереди (без исполнения)
}
