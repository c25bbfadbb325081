package domain

type GlobalStats struct {
	TotalDecisions int64            `json:"total_decisions"`
	BlockedShare   float64          `json:"blocked_share"` // Доля block среди всех решений
	TopKinds       map[string]int64 `json:"top_kinds"`
	HourlyActivity []ActivityPoint  `json:"hourly_activity"`
}

type ActivityPoint struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}
