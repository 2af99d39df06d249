package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MemoryPath keeps the database inside the process
const MemoryPath = ":memory:"

// Store handles all database operations
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = MemoryPath
	}

	inMemory := dbPath == MemoryPath || strings.Contains(dbPath, "mode=memory")
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if inMemory {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		request_id TEXT,
		provider TEXT NOT NULL,
		version TEXT,
		model TEXT NOT NULL,
		prompt TEXT NOT NULL,
		response TEXT,
		error TEXT,
		duration_ms INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		handle TEXT NOT NULL,
		outcome TEXT NOT NULL,
		source TEXT,
		item_count INTEGER,
		degraded BOOLEAN,
		duration_ms INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at);
	CREATE INDEX IF NOT EXISTS idx_requests_created_at ON requests(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordExchange appends one generation call. A missing ID or timestamp is filled in.
func (s *Store) RecordExchange(ctx context.Context, e Exchange) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (id, request_id, provider, version, model,
			prompt, response, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.RequestID, e.Provider, e.Version, e.Model,
		e.Prompt, e.Response, e.Error, e.Duration.Milliseconds(), e.CreatedAt.UnixMilli())

	return err
}

// RecentExchanges returns the newest exchanges first
func (s *Store) RecentExchanges(ctx context.Context, limit int) ([]Exchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, provider, version, model,
			prompt, response, error, duration_ms, created_at
		FROM exchanges
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var requestID, version, response, errText sql.NullString
		var durationMs, createdMs int64

		err := rows.Scan(
			&e.ID, &requestID, &e.Provider, &version, &e.Model,
			&e.Prompt, &response, &errText, &durationMs, &createdMs,
		)
		if err != nil {
			return nil, err
		}

		e.RequestID = requestID.String
		e.Version = version.String
		e.Response = response.String
		e.Error = errText.String
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordRequest appends the outcome of one analyze request
func (s *Store) RecordRequest(ctx context.Context, r Request) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, handle, outcome, source, item_count, degraded, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Handle, r.Outcome, r.Source, r.ItemCount, r.Degraded,
		r.Duration.Milliseconds(), r.CreatedAt.UnixMilli())

	return err
}

// RecentRequests returns the newest requests first
func (s *Store) RecentRequests(ctx context.Context, limit int) ([]Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, handle, outcome, source, item_count, degraded, duration_ms, created_at
		FROM requests
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var r Request
		var source sql.NullString
		var durationMs, createdMs int64

		if err := rows.Scan(&r.ID, &r.Handle, &r.Outcome, &source, &r.ItemCount,
			&r.Degraded, &durationMs, &createdMs); err != nil {
			return nil, err
		}

		r.Source = source.String
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes exchanges and requests created before cutoff and
// returns how many rows were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"exchanges", "requests"} {
		res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE created_at < ?", cutoff.UnixMilli())
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
