// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/pdiddy/verity/pkg/types"
)

var resultPrefix = []byte("result/")

// gcDiscardRatio is passed to RunValueLogGC after a purge.
const gcDiscardRatio = 0.5

const maxConflictRetries = 5

// BadgerStore keeps entries in an embedded Badger database. Entries also
// carry a native Badger TTL so stale data is dropped even if Purge never
// runs.
type BadgerStore struct {
	db       *badger.DB
	ttl      time.Duration
	inMemory bool
	logger   *slog.Logger

	// Now is the clock used for expiry and timestamps. Nil means time.Now.
	Now func() time.Time
}

// badgerLogger routes Badger's internal logging to slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens or creates a Badger database in directory path. An empty
// path opens an in-memory database.
func OpenBadger(path string, ttl time.Duration, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}
	return &BadgerStore{db: db, ttl: ttl, inMemory: path == "", logger: logger}, nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func entryKey(key string) []byte {
	return append(slices.Clone(resultPrefix), key...)
}

// setEntry writes e with a Badger TTL covering the rest of its lifetime.
func (s *BadgerStore) setEntry(txn *badger.Txn, e types.CacheEntry, now time.Time) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}
	be := badger.NewEntry(entryKey(e.Key), data)
	if remaining := e.CreatedAt.Add(s.ttl).Sub(now); remaining > 0 {
		be = be.WithTTL(remaining)
	}
	return txn.SetEntry(be)
}

func getEntry(txn *badger.Txn, key string) (types.CacheEntry, bool, error) {
	item, err := txn.Get(entryKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.CacheEntry{}, false, nil
	}
	if err != nil {
		return types.CacheEntry{}, false, err
	}

	var e types.CacheEntry
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	})
	if err != nil {
		return types.CacheEntry{}, false, fmt.Errorf("decoding entry %q: %w", key, err)
	}
	return e, true, nil
}

// Lookup implements Cache. A hit refreshes LastAccessed on a best-effort
// basis; concurrent lookups of the same key never fail each other.
func (s *BadgerStore) Lookup(ctx context.Context, key string) (*types.PipelineResult, bool, error) {
	if key == "" {
		return nil, false, errEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	now := clock(s.Now)
	var (
		e  types.CacheEntry
		ok bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		e, ok, err = getEntry(txn, key)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("looking up %q: %w", key, err)
	}
	if !ok || e.Expired(now, s.ttl) {
		return nil, false, nil
	}

	if err := s.touch(key, e.CreatedAt, now); err != nil {
		s.logger.Warn("refreshing last_accessed", "key", key, "err", err)
	}
	return e.Result, e.Result != nil, nil
}

// touch sets LastAccessed on the entry written at created. An entry replaced
// in the meantime is left alone.
func (s *BadgerStore) touch(key string, created, now time.Time) error {
	return s.update(func(txn *badger.Txn) error {
		e, ok, err := getEntry(txn, key)
		if err != nil || !ok || !e.CreatedAt.Equal(created) || !e.LastAccessed.Before(now) {
			return err
		}
		e.LastAccessed = now
		return s.setEntry(txn, e, now)
	})
}

// update runs fn in a read-write transaction, retrying on conflicts with
// other writers.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// Store implements Cache.
func (s *BadgerStore) Store(ctx context.Context, key string, result *types.PipelineResult) error {
	if err := checkStore(key, result); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := clock(s.Now)
	err := s.update(func(txn *badger.Txn) error {
		prev, _, err := getEntry(txn, key)
		if err != nil {
			return err
		}
		return s.setEntry(txn, types.CacheEntry{
			Key:          key,
			Result:       result,
			CreatedAt:    now,
			LastAccessed: now,
			Version:      prev.Version + 1,
		}, now)
	})
	if err != nil {
		return fmt.Errorf("storing %q: %w", key, err)
	}
	return nil
}

// List implements Store.
func (s *BadgerStore) List(ctx context.Context) ([]types.CacheEntry, error) {
	var entries []types.CacheEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = resultPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e types.CacheEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decoding entry %q: %w", bytes.TrimPrefix(it.Item().Key(), resultPrefix), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}

	slices.SortStableFunc(entries, func(a, b types.CacheEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return entries, nil
}

// Purge implements Store. It runs value log GC afterwards on disk-backed
// databases.
func (s *BadgerStore) Purge(ctx context.Context) (int, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	now := clock(s.Now)
	purged := 0
	err = s.update(func(txn *badger.Txn) error {
		purged = 0
		for _, listed := range entries {
			// Re-read so a concurrent Store is not deleted.
			e, ok, err := getEntry(txn, listed.Key)
			if err != nil {
				return err
			}
			if !ok || !e.Expired(now, s.ttl) {
				continue
			}
			if err := txn.Delete(entryKey(e.Key)); err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}

	if purged > 0 && !s.inMemory {
		if err := s.db.RunValueLogGC(gcDiscardRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Warn("badger value log GC failed", "err", err)
		}
	}
	return purged, nil
}
