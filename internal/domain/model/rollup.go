package model

import "time"

// RollupRow is one cached daily statistic keyed by (day, org, workflow, stage).
// It is recomputable and never a source of truth.
type RollupRow struct {
	Day         time.Time `json:"day"`
	OrgID       string    `json:"org_id"`
	Workflow    string    `json:"workflow"`
	Stage       string    `json:"stage"`
	DealCount   int       `json:"deal_count"`
	TotalAmount float64   `json:"total_amount"`
	P50Amount   float64   `json:"p50_amount"`
	P90Amount   float64   `json:"p90_amount"`
	AvgHealth   *float64  `json:"avg_health"`
}
