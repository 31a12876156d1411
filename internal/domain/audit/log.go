package audit

import (
	"github.com/patentworks/security-core/internal/domain/values"
)

// LogEntry is one security log record handed to the event sink. The sink
// persists entries asynchronously; producers never wait on or inspect the
// outcome.
type LogEntry struct {
	EventType string                 `json:"event_type"`
	Message   string                 `json:"message"`
	Severity  string                 `json:"severity"`
	UserID    string                 `json:"user_id,omitempty"`
	Origin    *values.Origin         `json:"origin,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
