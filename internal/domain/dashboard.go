package domain

type UnifiedDashboard struct {
	Activity   ActivityStats   `json:"activity"`   // Темп конвейера
	Governance GovernanceStats `json:"governance"` // Вето и HITL
	Incidents  IncidentStats   `json:"incidents"`  // Сбои и паузы
	Quality    QualityStats    `json:"quality"`    // SLO/SLI (Latency)
}

type ActivityStats struct {
	DecisionsLastHour int64 `json:"decisions_last_hour"`
	ExecutedLastHour  int64 `json:"executed_last_hour"`
	ActiveAgents      int   `json:"active_agents"` // Не на паузе и не в error
}

type GovernanceStats struct {
	PendingApprovals int `json:"pending_approvals"` // Ждут ревьюера
	BlockedLastHour  int `json:"blocked_last_hour"` // Жёсткие вето за час
	HeldLastHour     int `json:"held_last_hour"`
}

type IncidentStats struct {
	PausedAgents int `json:"paused_agents"`
	FailedHour   int `json:"failed_last_hour"` // Ошибки dispatch/pipeline
}

type QualityStats struct {
	P95PipelineMS float64 `json:"p95_pipeline_ms"` // Полный прогон кандидата
	DryRunShare   float64 `json:"dry_run_share"`   // Доля dry-run среди одобренных
}
