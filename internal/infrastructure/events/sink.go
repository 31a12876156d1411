package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patentworks/security-core/internal/domain/audit"
	"github.com/patentworks/security-core/internal/domain/threat"
)

// EventWriter persists one event log record.
type EventWriter interface {
	InsertEvent(ctx context.Context, ev threat.StoredEvent) error
}

// Sink is the logging collaborator: an asynchronous, fail-open writer to the
// event log. Entries are buffered on a channel and flushed by a single
// background worker; when the buffer is full the entry is dropped rather than
// blocking the producer, and write failures are logged and forgotten. A
// security subsystem must never stall the operation it is observing.
type Sink struct {
	writer  EventWriter
	logger  *slog.Logger
	entries chan audit.LogEntry
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

const defaultBufferSize = 1024

// NewSink starts the background writer.
func NewSink(writer EventWriter, logger *slog.Logger) *Sink {
	s := &Sink{
		writer:  writer,
		logger:  logger,
		entries: make(chan audit.LogEntry, defaultBufferSize),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// LogSecurityEvent queues one entry. It never blocks and never fails; entries
// arriving after Close are dropped. The mutex keeps the send ordered against
// Close so a late producer cannot hit a closed channel.
func (s *Sink) LogSecurityEvent(ctx context.Context, entry audit.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn("event sink closed, dropping entry",
			"event_type", entry.EventType)
		return
	}

	select {
	case s.entries <- entry:
	default:
		s.logger.Warn("event sink buffer full, dropping entry",
			"event_type", entry.EventType)
	}
}

// Close stops accepting entries, drains the buffer, and waits for the worker.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.entries)
	s.mu.Unlock()

	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)

	for entry := range s.entries {
		ev := threat.StoredEvent{
			ID:          uuid.New(),
			SubjectID:   entry.UserID,
			EventType:   entry.EventType,
			Severity:    threat.Severity(entry.Severity),
			Description: entry.Message,
			Metadata:    entry.Metadata,
			CreatedAt:   time.Now(),
		}
		if entry.Origin != nil {
			ev.IPAddress = entry.Origin.IPAddress
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.writer.InsertEvent(ctx, ev); err != nil {
			s.logger.Error("writing security event failed",
				"event_type", entry.EventType, "error", err)
		}
		cancel()
	}
}
