// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/verity/pkg/types"
)

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the default durable Store.
type SQLiteStore struct {
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger

	// Now is the clock used for expiry and timestamps. Nil means time.Now.
	Now func() time.Time
}

// OpenSQLite opens or creates the cache database at path.
func OpenSQLite(path string, ttl time.Duration, logger *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite cache path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, ttl: ttl, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cached_results (
			normalized_claim TEXT PRIMARY KEY,
			result_json TEXT NOT NULL,
			verdict TEXT NOT NULL,
			created_at TEXT NOT NULL,
			last_accessed TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cached_results_created_at ON cached_results(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Lookup implements Cache. A hit refreshes last_accessed.
func (s *SQLiteStore) Lookup(ctx context.Context, key string) (*types.PipelineResult, bool, error) {
	if key == "" {
		return nil, false, errEmptyKey
	}

	var resultJSON, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json, created_at FROM cached_results WHERE normalized_claim = ?`, key,
	).Scan(&resultJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying cache: %w", err)
	}

	created, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, false, fmt.Errorf("parsing created_at for %q: %w", key, err)
	}
	now := clock(s.Now)
	if (types.CacheEntry{CreatedAt: created}).Expired(now, s.ttl) {
		return nil, false, nil
	}

	var result types.PipelineResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, false, fmt.Errorf("decoding cached result for %q: %w", key, err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE cached_results SET last_accessed = ? WHERE normalized_claim = ?`,
		now.Format(timeLayout), key,
	); err != nil {
		s.logger.Warn("updating last_accessed failed", "key", key, "err", err)
	}

	return &result, true, nil
}

// Store implements Cache.
func (s *SQLiteStore) Store(ctx context.Context, key string, result *types.PipelineResult) error {
	if err := checkStore(key, result); err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	now := clock(s.Now).Format(timeLayout)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cached_results (normalized_claim, result_json, verdict, created_at, last_accessed, version)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT(normalized_claim) DO UPDATE SET
			result_json=excluded.result_json, verdict=excluded.verdict,
			created_at=excluded.created_at, last_accessed=excluded.last_accessed,
			version=cached_results.version + 1`,
		key, string(data), string(result.Verdict.Label), now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting %q: %w", key, err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]types.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT normalized_claim, result_json, created_at, last_accessed, version
		 FROM cached_results ORDER BY created_at DESC, normalized_claim`)
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	defer rows.Close()

	var entries []types.CacheEntry
	for rows.Next() {
		var (
			e                                 types.CacheEntry
			resultJSON, created, lastAccessed string
		)
		if err := rows.Scan(&e.Key, &resultJSON, &created, &lastAccessed, &e.Version); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parsing created_at for %q: %w", e.Key, err)
		}
		if e.LastAccessed, err = time.Parse(timeLayout, lastAccessed); err != nil {
			return nil, fmt.Errorf("parsing last_accessed for %q: %w", e.Key, err)
		}
		e.Result = &types.PipelineResult{}
		if err := json.Unmarshal([]byte(resultJSON), e.Result); err != nil {
			return nil, fmt.Errorf("decoding cached result for %q: %w", e.Key, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Purge implements Store.
func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	cutoff := clock(s.Now).Add(-s.ttl).Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM cached_results WHERE created_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged rows: %w", err)
	}
	return int(n), nil
}
