package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScopeResult summarises the processing of one scope unit.
type ScopeResult struct {
	Scope           ScopeUnit       `json:"scope"`
	EnvironmentType EnvironmentType `json:"environment_type"`
	Counts          ResourceCounts  `json:"counts"`
	CoreEstimate    decimal.Decimal `json:"core_estimate"`
	Partitions      int             `json:"partitions"`
	Degraded        []string        `json:"degraded,omitempty"`
	Elapsed         time.Duration   `json:"elapsed"`
	Success         bool            `json:"success"`
	Error           string          `json:"error,omitempty"`
}

// Report is everything a run produced.
type Report struct {
	EnvironmentType EnvironmentType `json:"environment_type"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Scopes          []ScopeResult   `json:"scopes"`
	LineItems       []PlanLineItem  `json:"line_items"`
}
