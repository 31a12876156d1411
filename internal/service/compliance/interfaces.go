package compliance

import (
	"context"

	"github.com/patentworks/security-core/internal/domain/audit"
)

// Store is the persistence collaborator for compliance checks. Checks only
// ask schema and row-count questions; a store failure fails the individual
// check, never the evaluation run.
type Store interface {
	// TableExists reports whether a table is present.
	TableExists(ctx context.Context, table string) (bool, error)
	// CountRows counts the rows of a table.
	CountRows(ctx context.Context, table string) (int64, error)
}

// EventSink receives one log entry per evaluated check.
type EventSink interface {
	LogSecurityEvent(ctx context.Context, entry audit.LogEntry)
}
