package auditrisk

import (
	"context"
	"time"

	"github.com/patentworks/security-core/internal/domain/audit"
)

// Store is the persistence collaborator for user lookups and dashboard
// counts. As everywhere in the engines, store failures degrade to "no data"
// rather than failing the operation.
type Store interface {
	// ResolveUserName returns the display name for a user id.
	ResolveUserName(ctx context.Context, userID string) (string, error)
	// CountUsers returns the total number of registered users.
	CountUsers(ctx context.Context) (int, error)
	// CountActiveUsers returns users with activity since the cutoff.
	CountActiveUsers(ctx context.Context, since time.Time) (int, error)
	// CountEventsBySeverity returns per-severity event counts since the cutoff.
	CountEventsBySeverity(ctx context.Context, since time.Time) (map[string]int, error)
}

// EventSink receives security log entries for asynchronous persistence.
type EventSink interface {
	LogSecurityEvent(ctx context.Context, entry audit.LogEntry)
}

// Config tunes the tracker's in-memory bounds and metric alerting.
type Config struct {
	AssessmentCacheSize int
	MetricThreshold     int
	MaxEntryAge         time.Duration
	ActiveUserWindow    time.Duration
}

// DefaultConfig returns the standard tracker tuning.
func DefaultConfig() Config {
	return Config{
		AssessmentCacheSize: 10000,
		MetricThreshold:     100,
		MaxEntryAge:         90 * 24 * time.Hour,
		ActiveUserWindow:    24 * time.Hour,
	}
}
