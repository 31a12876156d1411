package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/patentworks/security-core/internal/domain/threat"
	"github.com/patentworks/security-core/internal/infrastructure/config"
)

// Store is the persistence collaborator: a narrow query surface over the
// event log and reference tables. All derived state lives in the engines;
// the store only answers historical and schema questions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects a pgx pool using the database configuration.
func NewStore(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CountEvents counts events of one type for a subject since a cutoff.
func (s *Store) CountEvents(ctx context.Context, subjectID, eventType string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM security_events
		WHERE subject_id = $1 AND event_type = $2 AND created_at > $3
	`, subjectID, eventType, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting %s events: %w", eventType, err)
	}
	return count, nil
}

// CountDistinctIPs counts distinct origin addresses seen for a subject since
// a cutoff. Rows without an origin are ignored.
func (s *Store) CountDistinctIPs(ctx context.Context, subjectID string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT ip_address)
		FROM security_events
		WHERE subject_id = $1 AND ip_address <> '' AND created_at > $2
	`, subjectID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting distinct ips: %w", err)
	}
	return count, nil
}

// EventsInRange returns stored events inside a window, optionally filtered to
// one subject, newest first.
func (s *Store) EventsInRange(ctx context.Context, start, end time.Time, subjectID string) ([]threat.StoredEvent, error) {
	query := `
		SELECT id, subject_id, event_type, severity, message, metadata, ip_address, created_at
		FROM security_events
		WHERE created_at >= $1 AND created_at <= $2
	`
	args := []interface{}{start, end}
	if subjectID != "" {
		query += ` AND subject_id = $3`
		args = append(args, subjectID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events in range: %w", err)
	}
	defer rows.Close()

	var events []threat.StoredEvent
	for rows.Next() {
		var ev threat.StoredEvent
		var metadata []byte
		if err := rows.Scan(&ev.ID, &ev.SubjectID, &ev.EventType, &ev.Severity,
			&ev.Description, &metadata, &ev.IPAddress, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &ev.Metadata)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// InsertEvent appends one record to the event log.
func (s *Store) InsertEvent(ctx context.Context, ev threat.StoredEvent) error {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO security_events (id, subject_id, event_type, severity, message, metadata, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.ID, ev.SubjectID, ev.EventType, ev.Severity, ev.Description, metadata, ev.IPAddress, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting security event: %w", err)
	}
	return nil
}

// ResolveUserName resolves a user id to a display name.
func (s *Store) ResolveUserName(ctx context.Context, userID string) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `
		SELECT display_name FROM users WHERE id = $1
	`, userID).Scan(&name)
	if err == pgx.ErrNoRows {
		return "", fmt.Errorf("user %s: %w", userID, err)
	}
	if err != nil {
		return "", fmt.Errorf("resolving user name: %w", err)
	}
	return name, nil
}

// CountUsers returns the total number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// CountActiveUsers counts users with any event since the cutoff.
func (s *Store) CountActiveUsers(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT subject_id)
		FROM security_events
		WHERE created_at > $1
	`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active users: %w", err)
	}
	return count, nil
}

// CountEventsBySeverity buckets the event log since a cutoff by severity.
func (s *Store) CountEventsBySeverity(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT severity, COUNT(*)
		FROM security_events
		WHERE created_at > $1
		GROUP BY severity
	`, since)
	if err != nil {
		return nil, fmt.Errorf("counting events by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("scanning severity count: %w", err)
		}
		counts[severity] = count
	}
	return counts, rows.Err()
}

// TableExists reports whether a table is present in the public schema.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", table, err)
	}
	return exists, nil
}

// CountRows counts the rows of a named table. The table name is quoted as an
// identifier; callers pass fixed names from rule definitions, never user
// input.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pgx.Identifier{table}.Sanitize())
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows of %s: %w", table, err)
	}
	return count, nil
}
