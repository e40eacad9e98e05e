package bitacora

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gyaneshwarpardhi/atmsvr/internal/event"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	serial      INTEGER NOT NULL,
	origin      INTEGER NOT NULL,
	type        INTEGER NOT NULL,
	type_name   TEXT    NOT NULL,
	occurred_at INTEGER NOT NULL,
	received_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_origin ON events(origin, occurred_at);
`

// Store mirrors accepted events into a SQLite database for querying.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens (or creates) the database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init event schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Record inserts one row for ev.
func (s *Store) Record(ev event.Event) error {
	_, err := s.db.Exec(
		`INSERT INTO events (serial, origin, type, type_name, occurred_at, received_at) VALUES (?, ?, ?, ?, ?, ?)`,
		int64(ev.Serial), int64(ev.Origin), int64(ev.Type), ev.Type.String(), int64(ev.Timestamp), s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert event: %w", ErrWrite, err)
	}
	return nil
}

// Recent returns up to limit events from origin, newest first.
func (s *Store) Recent(origin uint32, limit int) ([]event.Event, error) {
	rows, err := s.db.Query(
		`SELECT serial, origin, type, occurred_at FROM events WHERE origin = ? ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		int64(origin), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		var serial, orig, typ, ts int64
		if err := rows.Scan(&serial, &orig, &typ, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, event.Event{
			Origin:    uint32(orig),
			Timestamp: uint64(ts),
			Type:      event.Type(typ),
			Serial:    uint32(serial),
		})
	}
	return out, rows.Err()
}

// Count returns the number of stored events.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
