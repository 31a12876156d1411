package threat

import (
	"time"

	"github.com/google/uuid"
)

// StoredEvent is one security event row read back from the event log. The
// scoring engine never writes these directly; they arrive through the event
// sink and are only consulted for windowed history queries and reports.
type StoredEvent struct {
	ID          uuid.UUID              `json:"id"`
	SubjectID   string                 `json:"subject_id"`
	EventType   string                 `json:"event_type"`
	Severity    Severity               `json:"severity"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	IPAddress   string                 `json:"ip_address,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// IndicatorCount ranks one indicator description by occurrence.
type IndicatorCount struct {
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// Report is a read-only reconstruction of threat activity over a window,
// joined with the current in-memory risk profiles.
type Report struct {
	ID             uuid.UUID        `json:"id"`
	StartDate      time.Time        `json:"start_date"`
	EndDate        time.Time        `json:"end_date"`
	SubjectID      string           `json:"subject_id,omitempty"`
	TotalEvents    int              `json:"total_events"`
	SeverityCounts map[Severity]int `json:"severity_counts"`
	TopIndicators  []IndicatorCount `json:"top_indicators"`
	RiskProfiles   []Score          `json:"risk_profiles"`
	GeneratedAt    time.Time        `json:"generated_at"`
}
