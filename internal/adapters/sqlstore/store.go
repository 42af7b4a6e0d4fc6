// Package sqlstore keeps the worker's ledger snapshot in a SQL database, one row
// per worker. Every commit is a single upsert, so the database makes it atomic.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/bft-labs/ledgerworker/internal/domain"
)

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS ledger_snapshots (
	worker_id  TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at BIGINT NOT NULL
)`

// Store persists snapshots in SQL.
type Store struct {
	sqlDB    *sql.DB
	dialect  Dialect
	workerID string
}

// SQLitePath returns the database file of a worker inside dir.
func SQLitePath(dir, workerID string) string {
	return filepath.Join(dir, fmt.Sprintf("worker_%s.db", workerID))
}

// OpenSQLite opens (or creates) a SQLite database at path.
func OpenSQLite(ctx context.Context, path, workerID string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"
	return open(ctx, SQLite, dsn, workerID)
}

// OpenPostgres connects to a Postgres database.
func OpenPostgres(ctx context.Context, dsn, workerID string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	return open(ctx, Postgres, dsn, workerID)
}

func open(ctx context.Context, dialect Dialect, dsn, workerID string) (*Store, error) {
	if strings.TrimSpace(workerID) == "" {
		return nil, fmt.Errorf("worker id is required")
	}
	sqlDB, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dialect, err)
	}
	if dialect == SQLite {
		// One writer; the worker already serializes every commit.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, dialect: dialect, workerID: workerID}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the worker's snapshot, creating an empty one on first start.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Snapshot{}, fmt.Errorf("storage is not configured")
	}

	var data string
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT data FROM ledger_snapshots WHERE worker_id = "+s.ph(1),
		s.workerID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		snap := domain.NewSnapshot()
		if err := s.Commit(ctx, snap); err != nil {
			return domain.Snapshot{}, fmt.Errorf("initialize snapshot: %w", err)
		}
		return snap, nil
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.Normalize()
	return snap, nil
}

// Commit replaces the worker's row in one statement.
func (s *Store) Commit(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO ledger_snapshots (worker_id, data, updated_at)
		 VALUES (`+s.ph(1)+`, `+s.ph(2)+`, `+s.ph(3)+`)
		 ON CONFLICT (worker_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		s.workerID,
		string(data),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (s *Store) ph(n int) string {
	if s.dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
