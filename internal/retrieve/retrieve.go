// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve turns a claim into a deduplicated set of studies. It asks
// a QueryGenerator for up to three search queries, runs them concurrently
// against a Searcher, and merges the hits in query order so the outcome does
// not depend on which query finished first.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/verity/internal/httputil"
	"github.com/pdiddy/verity/pkg/types"
)

// Searcher runs one literature query. pubmed.Client implements it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]types.Study, error)
}

// QueryGenerator proposes search queries for a claim.
type QueryGenerator interface {
	Generate(ctx context.Context, claim string) ([]string, error)
}

// Evidence is the retriever's output.
type Evidence struct {
	// Studies are unique by ID, ordered by query index then provider rank.
	Studies []types.Study

	// Queries are the queries that were issued, in generation order.
	Queries []string

	// FailedQueries lists queries that failed after all attempts.
	FailedQueries []string

	// RawHits counts studies before deduplication.
	RawHits int

	// Duplicates counts studies dropped as already seen.
	Duplicates int

	// Fallback is true when deterministic queries replaced generated ones.
	Fallback bool
}

// backoffBase controls the base duration for exponential backoff between
// query attempts. Tests override this to avoid real sleeps.
var backoffBase = 500 * time.Millisecond

// Retriever runs the retrieval stage.
type Retriever struct {
	Generator     QueryGenerator
	Searcher      Searcher
	PerQueryLimit int
	MaxQueries    int
	MaxAttempts   int
	QueryTimeout  time.Duration
	Logger        *slog.Logger
}

// New builds a Retriever from configuration.
func New(gen QueryGenerator, s Searcher, pm types.PubMedConfig, pc types.PipelineConfig, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		Generator:     gen,
		Searcher:      s,
		PerQueryLimit: pm.PerQueryLimit,
		MaxQueries:    pc.MaxQueries,
		MaxAttempts:   pm.MaxAttempts,
		QueryTimeout:  pc.QueryTimeout,
		Logger:        logger,
	}
}

// Retrieve generates queries for c, runs them, and merges the results. It
// fails only when every query fails; finding nothing is a success.
func (r *Retriever) Retrieve(ctx context.Context, c types.Claim) (Evidence, error) {
	queries, fallback := r.queries(ctx, c)
	ev := Evidence{Queries: queries, Fallback: fallback}

	results := make([][]types.Study, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			results[i], errs[i] = r.searchWithRetry(ctx, q)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return Evidence{}, httputil.WrapTimeout(err)
	}

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			ev.FailedQueries = append(ev.FailedQueries, queries[i])
			r.Logger.Warn("query failed", "query", queries[i], "err", err)
		}
	}
	if failed == len(queries) {
		return Evidence{}, fmt.Errorf("all %d queries failed: %w", failed, errors.Join(errs...))
	}

	ev.Studies, ev.RawHits, ev.Duplicates = merge(results)
	r.Logger.Debug("retrieval complete",
		"queries", len(queries),
		"failed", failed,
		"raw_hits", ev.RawHits,
		"unique", len(ev.Studies))
	return ev, nil
}

// queries returns the cleaned generated queries, or the deterministic
// fallback when generation fails or yields nothing usable.
func (r *Retriever) queries(ctx context.Context, c types.Claim) ([]string, bool) {
	limit := r.MaxQueries
	if limit <= 0 {
		limit = 3
	}

	if r.Generator != nil {
		generated, err := r.Generator.Generate(ctx, c.Raw)
		if err != nil {
			r.Logger.Warn("query generation failed, using fallback queries", "err", err)
		} else if qs := cleanQueries(generated, limit); len(qs) > 0 {
			return qs, false
		} else {
			r.Logger.Warn("query generation returned no usable queries, using fallback queries")
		}
	}

	return cleanQueries(FallbackQueries(c.Normalized), limit), true
}

// FallbackQueries are used when query generation is unavailable.
func FallbackQueries(normalized string) []string {
	return []string{
		normalized + " meta-analysis",
		normalized + " systematic review",
	}
}

// cleanQueries trims queries, drops empty and case-insensitive duplicates,
// and keeps at most limit in their original order.
func cleanQueries(qs []string, limit int) []string {
	seen := make(map[string]bool, len(qs))
	var out []string
	for _, q := range qs {
		q = strings.Join(strings.Fields(q), " ")
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}

// searchWithRetry runs one query, retrying transient failures with
// exponential backoff. Each attempt is bounded by QueryTimeout.
func (r *Retriever) searchWithRetry(ctx context.Context, q string) ([]types.Study, error) {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(math.Pow(2, float64(attempt-2))) * backoffBase
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		studies, err := r.searchOnce(ctx, q)
		if err == nil {
			return studies, nil
		}
		lastErr = err
		if !httputil.IsTransient(err) || ctx.Err() != nil {
			break
		}
		r.Logger.Debug("retrying query", "query", q, "attempt", attempt, "err", err)
	}
	return nil, lastErr
}

func (r *Retriever) searchOnce(ctx context.Context, q string) ([]types.Study, error) {
	if r.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.QueryTimeout)
		defer cancel()
	}
	studies, err := r.Searcher.Search(ctx, q, r.PerQueryLimit)
	if err != nil {
		return nil, httputil.WrapTimeout(err)
	}
	if r.PerQueryLimit > 0 && len(studies) > r.PerQueryLimit {
		studies = studies[:r.PerQueryLimit]
	}
	return studies, nil
}

// merge concatenates per-query results in query order and keeps the first
// occurrence of each identifier. Later duplicates are dropped, not merged.
func merge(results [][]types.Study) ([]types.Study, int, int) {
	seen := make(map[string]bool)
	var out []types.Study
	raw, dups := 0, 0
	for _, rs := range results {
		for _, s := range rs {
			raw++
			if seen[s.ID] {
				dups++
				continue
			}
			seen[s.ID] = true
			out = append(out, s)
		}
	}
	return out, raw, dups
}
