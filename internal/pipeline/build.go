// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/pdiddy/verity/internal/cache"
	"github.com/pdiddy/verity/internal/claim"
	"github.com/pdiddy/verity/internal/llm"
	"github.com/pdiddy/verity/internal/metrics"
	"github.com/pdiddy/verity/internal/pubmed"
	"github.com/pdiddy/verity/internal/retrieve"
	"github.com/pdiddy/verity/internal/score"
	"github.com/pdiddy/verity/internal/synth"
	"github.com/pdiddy/verity/pkg/types"
)

// New builds a production pipeline from cfg: one language model client
// shared by the judge, query generator, evaluator and writer, and a PubMed
// searcher. store may be nil, which disables caching.
func New(cfg types.Config, store cache.Cache, rec *metrics.Recorder, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = cache.Nop{}
	}

	client, err := llm.New(cfg.LLM, logger.With("component", "llm"))
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	var judge claim.Judge
	if cfg.Claim.Judge {
		judge = &claim.LLMJudge{Client: client}
	}

	searcher := pubmed.New(cfg.PubMed, logger.With("component", "pubmed"))

	return &Pipeline{
		Validator: claim.NewValidator(cfg.Claim, judge, logger.With("component", "claim")),
		Retriever: retrieve.New(
			&retrieve.LLMQueryGenerator{Client: client},
			searcher,
			cfg.PubMed,
			cfg.Pipeline,
			logger.With("component", "retrieve"),
		),
		Scorer:       &score.Scorer{Evaluator: &score.LLMEvaluator{Client: client}},
		Synthesizer:  synth.New(&synth.LLMWriter{Client: client}, cfg.Pipeline.MinStudies, logger.With("component", "synth")),
		Cache:        store,
		Metrics:      rec,
		Logger:       logger,
		TopN:         cfg.Pipeline.TopN,
		StageRetries: cfg.Pipeline.StageRetries,
		StageTimeout: cfg.Pipeline.StageTimeout,
	}, nil
}
