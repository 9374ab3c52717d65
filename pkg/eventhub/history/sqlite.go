package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists event fingerprints to SQLite. It is suitable for
// single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a SQLite-backed history index. The path should be
// a file path (e.g., "./eventhistory.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			hash INTEGER NOT NULL,
			timestamp INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_hash
		ON events(hash)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record implements Store.
func (s *SQLiteStore) Record(hash uint32, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(
		`INSERT INTO events (hash, timestamp) VALUES (?, ?)`,
		int64(hash), ts.UnixMilli(),
	); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// Query implements Store.
func (s *SQLiteStore) Query(requests []Request, enforceOrder bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	if enforceOrder {
		var floor int64
		for _, req := range requests {
			first, count, err := s.scan(req, floor)
			if err != nil {
				return 0, err
			}
			if count == 0 {
				return 0, nil
			}
			floor = first + 1
		}
		return 1, nil
	}

	total := 0
	for _, req := range requests {
		_, count, err := s.scan(req, 0)
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

// scan counts matches for one request, with an optional extra lower bound
// in unix milliseconds.
func (s *SQLiteStore) scan(req Request, floor int64) (first int64, count int, err error) {
	hash := Fingerprint(req.Data, req.Mask)

	from := req.From.UnixMilli()
	if req.From.IsZero() {
		from = 0
	}
	if floor > from {
		from = floor
	}
	to := req.To.UnixMilli()
	if req.To.IsZero() {
		to = time.Now().UnixMilli()
	}

	var oldest sql.NullInt64
	row := s.db.QueryRow(
		`SELECT COUNT(*), MIN(timestamp) FROM events WHERE hash = ? AND timestamp BETWEEN ? AND ?`,
		int64(hash), from, to,
	)
	if err := row.Scan(&count, &oldest); err != nil {
		return 0, 0, fmt.Errorf("query events: %w", err)
	}
	return oldest.Int64, count, nil
}

// Len returns the total number of recorded fingerprints. Useful for testing.
func (s *SQLiteStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
