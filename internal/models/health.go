package models

import "time"

// ProviderHealth is a point-in-time health snapshot for one provider
// variant, maintained by the health monitor.
type ProviderHealth struct {
	IsHealthy           bool          `json:"is_healthy"`
	LastCheckedAt       time.Time     `json:"last_checked_at"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	RollingAvgLatency   time.Duration `json:"rolling_avg_latency"`
	LastErrorSummary    string        `json:"last_error,omitempty"`
}

// CostMetrics is the derived cost read-out for one provider variant.
// Numbers are estimates; nothing here enforces anything.
type CostMetrics struct {
	TotalCalls              int64   `json:"total_calls"`
	EstimatedUsageCost      float64 `json:"estimated_usage_cost"`
	MonthlySubscriptionCost float64 `json:"monthly_subscription_cost"`
	TotalEstimatedCost      float64 `json:"total_estimated_cost"`
	Threshold               float64 `json:"threshold"`
	ThresholdPct            float64 `json:"threshold_pct"`
	Exceeded                bool    `json:"exceeded"`
}
