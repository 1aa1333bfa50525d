// Package db is the Postgres adapter for long-term session storage. The
// tracker treats it as eventually consistent: every write here is also
// reflected in the ephemeral stores first, and a connectivity failure is
// never fatal to a reconciliation cycle.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/AliSDisrupt/Pakistan-vACC/models"
)

// ErrDurableWrite marks a non-fatal durable store failure. The
// synchronizer repairs any divergence on its next run.
var ErrDurableWrite = errors.New("durable store write failure")

type Store struct {
	db *sql.DB
}

// New connects, pings and bootstraps the schema.
func New(dsn string) (*Store, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{db: conn}
	if err := s.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id VARCHAR(128) PRIMARY KEY,
			category INTEGER NOT NULL,
			callsign VARCHAR(32) NOT NULL,
			cid INTEGER NOT NULL DEFAULT 0,
			name VARCHAR(255) NOT NULL DEFAULT '',
			start_time TIMESTAMP WITH TIME ZONE NOT NULL,
			end_time TIMESTAMP WITH TIME ZONE NOT NULL,
			duration_minutes INTEGER NOT NULL,
			frequency VARCHAR(16),
			departure VARCHAR(8),
			arrival VARCHAR(8),
			aircraft VARCHAR(32)
		)`,
		`CREATE TABLE IF NOT EXISTS open_sessions (
			category INTEGER NOT NULL,
			callsign VARCHAR(32) NOT NULL,
			cid INTEGER NOT NULL DEFAULT 0,
			name VARCHAR(255) NOT NULL DEFAULT '',
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			last_seen_at TIMESTAMP WITH TIME ZONE NOT NULL,
			frequency VARCHAR(16),
			facility INTEGER NOT NULL DEFAULT 0,
			departure VARCHAR(8),
			arrival VARCHAR(8),
			aircraft VARCHAR(32),
			PRIMARY KEY (category, callsign)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_cid ON sessions(cid)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_callsign ON sessions(callsign)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time DESC)`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// InsertClosedSession stores a closed session. The deterministic id makes
// the insert safe to repeat and safe across concurrent processes.
func (s *Store) InsertClosedSession(ctx context.Context, c models.ClosedSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, category, callsign, cid, name,
			start_time, end_time, duration_minutes,
			frequency, departure, arrival, aircraft
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.Identity.Category, c.Identity.Callsign, c.CID, c.Name,
		c.StartTime, c.EndTime, c.DurationMinutes,
		c.Frequency, c.Departure, c.Arrival, c.Aircraft)
	if err != nil {
		return fmt.Errorf("%w: insert closed session %s: %v", ErrDurableWrite, c.ID, err)
	}
	return nil
}

// UpsertOpenSession checkpoints an open session for crash recovery.
func (s *Store) UpsertOpenSession(ctx context.Context, o models.OpenSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO open_sessions (
			category, callsign, cid, name, started_at, last_seen_at,
			frequency, facility, departure, arrival, aircraft
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (category, callsign) DO UPDATE SET
			cid = EXCLUDED.cid,
			name = EXCLUDED.name,
			last_seen_at = EXCLUDED.last_seen_at,
			frequency = EXCLUDED.frequency,
			facility = EXCLUDED.facility,
			departure = EXCLUDED.departure,
			arrival = EXCLUDED.arrival,
			aircraft = EXCLUDED.aircraft
	`, o.Identity.Category, o.Identity.Callsign, o.CID, o.Name, o.StartedAt, o.LastSeenAt,
		o.Frequency, o.Facility, o.Departure, o.Arrival, o.Aircraft)
	if err != nil {
		return fmt.Errorf("%w: upsert open session %s: %v", ErrDurableWrite, o.Identity.Key(), err)
	}
	return nil
}

func (s *Store) DeleteOpenSession(ctx context.Context, id models.Identity) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM open_sessions WHERE category = $1 AND callsign = $2
	`, id.Category, id.Callsign)
	if err != nil {
		return fmt.Errorf("%w: delete open session %s: %v", ErrDurableWrite, id.Key(), err)
	}
	return nil
}

// ListOpenSessions returns every checkpointed open session.
func (s *Store) ListOpenSessions(ctx context.Context) ([]models.OpenSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, callsign, cid, name, started_at, last_seen_at,
			COALESCE(frequency, ''), facility,
			COALESCE(departure, ''), COALESCE(arrival, ''), COALESCE(aircraft, '')
		FROM open_sessions
		ORDER BY started_at
	`)
	if err != nil {
		return nil, fmt.Errorf("listing open sessions: %w", err)
	}
	defer rows.Close()

	var out []models.OpenSession
	for rows.Next() {
		var o models.OpenSession
		err := rows.Scan(&o.Identity.Category, &o.Identity.Callsign, &o.CID, &o.Name,
			&o.StartedAt, &o.LastSeenAt,
			&o.Frequency, &o.Facility, &o.Departure, &o.Arrival, &o.Aircraft)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ClosedSessionFilter narrows ListClosedSessions. Zero values mean "no
// constraint".
type ClosedSessionFilter struct {
	Category models.Category
	CID      int
	Since    time.Time
	Limit    int
}

// ListClosedSessions returns closed sessions newest first.
func (s *Store) ListClosedSessions(ctx context.Context, f ClosedSessionFilter) ([]models.ClosedSession, error) {
	query := `
		SELECT id, category, callsign, cid, name,
			start_time, end_time, duration_minutes,
			COALESCE(frequency, ''), COALESCE(departure, ''),
			COALESCE(arrival, ''), COALESCE(aircraft, '')
		FROM sessions WHERE 1=1`
	var args []interface{}

	if f.Category != 0 {
		args = append(args, f.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if f.CID != 0 {
		args = append(args, f.CID)
		query += fmt.Sprintf(" AND cid = $%d", len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		query += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}
	query += " ORDER BY start_time DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing closed sessions: %w", err)
	}
	defer rows.Close()

	var out []models.ClosedSession
	for rows.Next() {
		var c models.ClosedSession
		err := rows.Scan(&c.ID, &c.Identity.Category, &c.Identity.Callsign, &c.CID, &c.Name,
			&c.StartTime, &c.EndTime, &c.DurationMinutes,
			&c.Frequency, &c.Departure, &c.Arrival, &c.Aircraft)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MostRecentCallsign finds the newest non-ATIS callsign a participant
// closed a session under, for the last-active backfill.
func (s *Store) MostRecentCallsign(cid int, category models.Category) (string, error) {
	var callsign string
	err := s.db.QueryRow(`
		SELECT callsign FROM sessions
		WHERE cid = $1 AND category = $2 AND callsign NOT LIKE '%\_ATIS'
		ORDER BY end_time DESC
		LIMIT 1
	`, cid, category).Scan(&callsign)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return callsign, nil
}
