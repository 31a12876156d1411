package threatscore

import (
	"context"
	"time"

	"github.com/patentworks/security-core/internal/domain/threat"
)

// EventStore is the persistence collaborator queried for subject history.
// Failures are treated as "no data": a query error can suppress an indicator
// but never fails the analysis.
type EventStore interface {
	// CountEvents counts events of one type for a subject since a cutoff.
	CountEvents(ctx context.Context, subjectID, eventType string, since time.Time) (int, error)
	// CountDistinctIPs counts distinct origin addresses for a subject since a cutoff.
	CountDistinctIPs(ctx context.Context, subjectID string, since time.Time) (int, error)
	// EventsInRange returns stored events inside a window, optionally for one subject.
	EventsInRange(ctx context.Context, start, end time.Time, subjectID string) ([]threat.StoredEvent, error)
}

// Config tunes the detector thresholds and windows.
type Config struct {
	FailedLoginThreshold int
	FailedLoginWindow    time.Duration
	ExportThreshold      int
	ExportWindow         time.Duration
	DistinctIPThreshold  int
	DistinctIPWindow     time.Duration
	QuietHourStart       int
	QuietHourEnd         int
	SuspiciousIPs        []string
	SubjectCacheSize     int
}

// DefaultConfig returns the standard detector tuning.
func DefaultConfig() Config {
	return Config{
		FailedLoginThreshold: 5,
		FailedLoginWindow:    5 * time.Minute,
		ExportThreshold:      10,
		ExportWindow:         time.Hour,
		DistinctIPThreshold:  3,
		DistinctIPWindow:     24 * time.Hour,
		QuietHourStart:       22,
		QuietHourEnd:         6,
		SubjectCacheSize:     10000,
	}
}
