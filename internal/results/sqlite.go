package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createTable = `
CREATE TABLE IF NOT EXISTS results (
	job_id     TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	expires_at INTEGER NOT NULL
)`

// SQLite stores results in a local database file. Expired rows are
// invisible to Get and removed by Purge.
type SQLite struct {
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger

	// Now returns the current time; replaceable in tests.
	Now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, ttl time.Duration, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create results dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create results table: %w", err)
	}
	logger.Debug("results database ready", "path", path)
	return &SQLite{db: db, ttl: ttl, logger: logger, Now: time.Now}, nil
}

func (s *SQLite) Save(ctx context.Context, jobID string, payload []byte) error {
	expires := s.Now().Add(s.ttl).Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (job_id, payload, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		jobID, payload, expires)
	if err != nil {
		return fmt.Errorf("save result %s: %w", jobID, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, jobID string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM results WHERE job_id = ? AND expires_at > ?`,
		jobID, s.Now().Unix()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", jobID, err)
	}
	return payload, nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE expires_at <= ?`, s.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge results: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("purged expired results", "count", n)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
