package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/persistcam/persistcam-go/pkg/eventlog"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("journal closed")

// DefaultQueryLimit caps Query when no limit is given.
const DefaultQueryLimit = 1000

// SessionInfo summarizes the events of one persistent session.
type SessionInfo struct {
	SessionID string
	First     time.Time
	Last      time.Time
	Events    int
}

// Store is a SQLite-backed event journal. It is safe for concurrent use.
type Store struct {
	db *sql.DB

	mu      sync.RWMutex
	closed  bool
	lastErr error
	dropped int
}

// NewStore opens or creates the journal at dbPath.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`PRAGMA journal_mode = WAL;`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		category INTEGER NOT NULL,
		device_id TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		payload BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, ts);
	CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection. Later Log calls are dropped.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Log implements eventlog.Logger. Write failures are counted and the last
// one is kept for Dropped.
func (s *Store) Log(event eventlog.Event) {
	if err := s.Append(event); err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.dropped++
		s.mu.Unlock()
	}
}

// Dropped returns how many events Log failed to store and the last error.
func (s *Store) Dropped() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped, s.lastErr
}

// Append stores one event.
func (s *Store) Append(event eventlog.Event) error {
	payload, err := eventlog.EncodeEvent(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	_, err = s.db.Exec(`
		INSERT INTO events (ts, session_id, category, device_id, summary, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.Timestamp.UnixNano(), event.SessionID, int(event.Category),
		event.DeviceID, event.Summary(), payload)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Query returns the events matching filter in logging order. A zero limit
// means DefaultQueryLimit, a negative one returns every match.
func (s *Store) Query(filter eventlog.Filter, limit int) ([]eventlog.Event, error) {
	if limit == 0 {
		limit = DefaultQueryLimit
	}

	where, args := whereClause(filter)
	// SQLite treats a negative LIMIT as unbounded.
	args = append(args, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(`
		SELECT payload FROM events`+where+`
		ORDER BY ts, id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []eventlog.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		event, err := eventlog.DecodeEvent(payload)
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// CountByCategory counts the events matching filter per category.
// filter.Category is ignored.
func (s *Store) CountByCategory(filter eventlog.Filter) (map[eventlog.Category]int, error) {
	filter.Category = nil
	where, args := whereClause(filter)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(`
		SELECT category, COUNT(*) FROM events`+where+`
		GROUP BY category
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[eventlog.Category]int)
	for rows.Next() {
		var cat, n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		counts[eventlog.Category(cat)] = n
	}

	return counts, rows.Err()
}

// Sessions lists the sessions in the journal, most recent first.
func (s *Store) Sessions() ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(`
		SELECT session_id, MIN(ts), MAX(ts), COUNT(*)
		FROM events
		GROUP BY session_id
		ORDER BY MAX(ts) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var first, last int64
		if err := rows.Scan(&info.SessionID, &first, &last, &info.Events); err != nil {
			return nil, err
		}
		info.First = time.Unix(0, first)
		info.Last = time.Unix(0, last)
		sessions = append(sessions, info)
	}

	return sessions, rows.Err()
}

// Prune deletes events logged before cutoff and returns how many were removed.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	res, err := s.db.Exec(`DELETE FROM events WHERE ts < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func whereClause(f eventlog.Filter) (string, []any) {
	var conds []string
	var args []any

	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Category != nil {
		conds = append(conds, "category = ?")
		args = append(args, int(*f.Category))
	}
	if f.DeviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if f.TimeStart != nil {
		conds = append(conds, "ts >= ?")
		args = append(args, f.TimeStart.UnixNano())
	}
	if f.TimeEnd != nil {
		conds = append(conds, "ts < ?")
		args = append(args, f.TimeEnd.UnixNano())
	}

	if len(conds) == 0 {
		return "", nil
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

// Compile-time interface satisfaction check.
var _ eventlog.Logger = (*Store)(nil)
