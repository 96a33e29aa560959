// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Claim is a submitted health claim and its normalized form. Two claims
// with the same Normalized value share one cache entry.
type Claim struct {
	Raw        string `json:"raw" yaml:"raw"`
	Normalized string `json:"normalized" yaml:"normalized"`
}

// Stats summarizes how many studies flowed through each stage.
type Stats struct {
	// Found is the number of unique studies after deduplication.
	Found int `json:"studies_found" yaml:"studies_found"`

	// Scored is the number of studies the evaluator scored.
	Scored int `json:"studies_scored" yaml:"studies_scored"`

	// Selected is the number of studies in the top-N.
	Selected int `json:"top_studies_count" yaml:"top_studies_count"`
}

// PipelineResult is the complete, immutable outcome of one verification run.
// It is serialized to the cache and returned verbatim on a hit.
type PipelineResult struct {
	// RunID identifies the run that produced the result.
	RunID string `json:"run_id" yaml:"run_id"`

	Claim           string `json:"claim" yaml:"claim"`
	NormalizedClaim string `json:"normalized_claim" yaml:"normalized_claim"`

	Verdict    Verdict       `json:"verdict" yaml:"verdict"`
	TopStudies []ScoredStudy `json:"top_studies" yaml:"top_studies"`

	// Queries lists the search queries that were issued, in generation order.
	Queries []string `json:"queries" yaml:"queries"`

	Stats     Stats     `json:"stats" yaml:"stats"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// CacheEntry wraps a stored PipelineResult with its bookkeeping fields.
type CacheEntry struct {
	Key          string          `json:"key" yaml:"key"`
	Result       *PipelineResult `json:"result" yaml:"result"`
	CreatedAt    time.Time       `json:"created_at" yaml:"created_at"`
	LastAccessed time.Time       `json:"last_accessed" yaml:"last_accessed"`

	// Version counts how many times the key has been written.
	Version int `json:"version" yaml:"version"`
}

// Expired reports whether the entry is at least ttl old at now.
func (e CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) >= ttl
}
