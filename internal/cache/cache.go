// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores completed pipeline results keyed by normalized claim.
// An entry is a hit only while it is younger than the configured TTL as
// measured by an injectable clock. Writes always overwrite the previous
// entry, bump its version and restart its TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/verity/pkg/types"
)

// Cache is the narrow interface the pipeline depends on.
type Cache interface {
	// Lookup returns the stored result for key when one exists and has not
	// expired. A miss is (nil, false, nil).
	Lookup(ctx context.Context, key string) (*types.PipelineResult, bool, error)

	// Store writes result under key, replacing any previous entry.
	Store(ctx context.Context, key string, result *types.PipelineResult) error
}

// Store is a Cache with maintenance operations.
type Store interface {
	Cache

	// List returns every entry, expired or not, newest first.
	List(ctx context.Context) ([]types.CacheEntry, error)

	// Purge deletes expired entries and returns how many were removed.
	Purge(ctx context.Context) (int, error)

	Close() error
}

var errEmptyKey = errors.New("cache key is empty")

// Open returns the Store selected by cfg.Backend.
func Open(cfg types.CacheConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case types.CacheSQLite:
		return OpenSQLite(cfg.Path, cfg.TTL, logger)
	case types.CacheBadger:
		return OpenBadger(cfg.Path, cfg.TTL, logger)
	case types.CacheNone, "":
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

func checkStore(key string, result *types.PipelineResult) error {
	if key == "" {
		return errEmptyKey
	}
	if result == nil {
		return errors.New("cache result is nil")
	}
	return nil
}

// Nop is a Store that never hits and discards writes.
type Nop struct{}

func (Nop) Lookup(context.Context, string) (*types.PipelineResult, bool, error) {
	return nil, false, nil
}

func (Nop) Store(context.Context, string, *types.PipelineResult) error { return nil }

func (Nop) List(context.Context) ([]types.CacheEntry, error) { return nil, nil }

func (Nop) Purge(context.Context) (int, error) { return 0, nil }

func (Nop) Close() error { return nil }

// Format selects the Export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Export writes every entry in s to w in the given format.
func Export(ctx context.Context, s Store, w io.Writer, format Format) error {
	entries, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("listing entries for export: %w", err)
	}
	if entries == nil {
		entries = []types.CacheEntry{}
	}

	var data []byte
	switch format {
	case FormatYAML, "":
		data, err = yaml.Marshal(entries)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
	case FormatJSON:
		data, err = json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown export format %q", format)
	}

	_, err = w.Write(data)
	return err
}

// clock returns now, or time.Now when now is nil.
func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}
