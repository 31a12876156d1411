package audit

import (
	"time"

	"github.com/google/uuid"
)

// Alert is a transient dashboard alert. Alerts are regenerated on every
// dashboard build from current assessments and metrics; they are never stored.
type Alert struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Severity  RiskLevel `json:"severity"`
	Message   string    `json:"message"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Dashboard is a point-in-time security overview joining store counts with
// in-memory engine state.
type Dashboard struct {
	TotalUsers      int            `json:"total_users"`
	ActiveUsers     int            `json:"active_users"`
	ThreatCounts    map[string]int `json:"threat_counts"`
	RecentTrails    []Trail        `json:"recent_trails"`
	TopAssessments  []Assessment   `json:"top_assessments"`
	RecentMetrics   []Metric       `json:"recent_metrics"`
	Alerts          []Alert        `json:"alerts"`
	GeneratedAt     time.Time      `json:"generated_at"`
}
