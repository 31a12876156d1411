package audit

import (
	"fmt"
	"time"
)

// MaxMetricEntries caps the in-memory metric list; the oldest bucket is
// evicted once the cap is reached.
const MaxMetricEntries = 1000

// Trend describes how a metric bucket moved relative to its previous value.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// MetricStatus classifies a bucket value against its threshold.
type MetricStatus string

const (
	StatusNormal   MetricStatus = "normal"
	StatusWarning  MetricStatus = "warning"
	StatusCritical MetricStatus = "critical"
)

// warningRatio is the fraction of the threshold at which a bucket starts
// warning.
const warningRatio = 0.8

// Metric is a per-(category, action, day) counter bucket.
type Metric struct {
	Name      string       `json:"name"`
	Category  string       `json:"category"`
	Action    string       `json:"action"`
	Value     int          `json:"value"`
	Trend     Trend        `json:"trend"`
	Threshold int          `json:"threshold"`
	Status    MetricStatus `json:"status"`
	Day       time.Time    `json:"day"`
	prev      int
}

// MetricName builds the bucket key for a category and action.
func MetricName(category, action string) string {
	return fmt.Sprintf("%s_%s", category, action)
}

// NewMetric creates a zeroed bucket for the day containing ts.
func NewMetric(category, action string, threshold int, ts time.Time) *Metric {
	return &Metric{
		Name:      MetricName(category, action),
		Category:  category,
		Action:    action,
		Threshold: threshold,
		Trend:     TrendStable,
		Status:    StatusNormal,
		Day:       ts.Truncate(24 * time.Hour),
	}
}

// Increment bumps the bucket's monotonic counter and recomputes trend and
// status from the new value.
func (m *Metric) Increment() {
	m.prev = m.Value
	m.Value++

	switch {
	case m.Value > m.prev:
		m.Trend = TrendIncreasing
	case m.Value < m.prev:
		m.Trend = TrendDecreasing
	default:
		m.Trend = TrendStable
	}

	m.Status = statusFor(m.Value, m.Threshold)
}

// SameBucket reports whether this metric covers the given name and the day
// containing ts.
func (m *Metric) SameBucket(name string, ts time.Time) bool {
	return m.Name == name && m.Day.Equal(ts.Truncate(24*time.Hour))
}

func statusFor(value, threshold int) MetricStatus {
	if threshold <= 0 {
		return StatusNormal
	}
	switch {
	case value >= threshold:
		return StatusCritical
	case float64(value) >= warningRatio*float64(threshold):
		return StatusWarning
	default:
		return StatusNormal
	}
}
