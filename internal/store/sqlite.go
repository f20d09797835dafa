// ABOUTME: SQLite implementation of the HistoryStore interface using modernc.org/sqlite
// ABOUTME: Provides connection-history persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the HistoryStore interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS connection_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			connections INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_connection_history_timestamp
			ON connection_history(timestamp);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// AppendSample records one connection-count sample.
func (s *SQLiteStore) AppendSample(ctx context.Context, sample Sample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connection_history (timestamp, connections) VALUES (?, ?)`,
		sample.Timestamp.UTC().Format(time.RFC3339Nano),
		sample.Connections,
	)
	if err != nil {
		return fmt.Errorf("inserting sample: %w", err)
	}
	return nil
}

// SamplesSince returns all samples at or after cutoff, ascending by time.
func (s *SQLiteStore) SamplesSince(ctx context.Context, cutoff time.Time) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, connections FROM connection_history
		 WHERE timestamp >= ? ORDER BY timestamp ASC`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var raw string
		var sample Sample
		if err := rows.Scan(&raw, &sample.Connections); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		sample.Timestamp, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parsing sample timestamp %q: %w", raw, err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating samples: %w", err)
	}
	return samples, nil
}

// PruneBefore deletes all samples older than cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM connection_history WHERE timestamp < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("pruning samples: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Debug("pruned history samples", "count", n, "cutoff", cutoff)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
