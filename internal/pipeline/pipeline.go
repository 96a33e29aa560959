// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one claim through validation, the result cache,
// retrieval, scoring, selection and synthesis, in that order. Stages run
// sequentially; a failed stage stops the run and nothing partial is cached
// or returned.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/verity/internal/cache"
	"github.com/pdiddy/verity/internal/httputil"
	"github.com/pdiddy/verity/internal/metrics"
	"github.com/pdiddy/verity/internal/retrieve"
	"github.com/pdiddy/verity/internal/score"
	"github.com/pdiddy/verity/pkg/types"
)

// Validator checks and normalizes a raw claim.
type Validator interface {
	Validate(ctx context.Context, raw string) (types.Claim, error)
}

// Retriever gathers candidate studies for a claim.
type Retriever interface {
	Retrieve(ctx context.Context, c types.Claim) (retrieve.Evidence, error)
}

// Scorer assigns quality scores to studies.
type Scorer interface {
	Score(ctx context.Context, claim string, studies []types.Study) ([]types.ScoredStudy, error)
}

// Synthesizer produces the verdict from the selected studies.
type Synthesizer interface {
	Synthesize(ctx context.Context, claim string, studies []types.ScoredStudy) (types.Verdict, error)
}

// Options adjust a single run.
type Options struct {
	// Refresh skips the cache lookup and overwrites any stored entry.
	Refresh bool
}

// Outcome is the result of Run.
type Outcome struct {
	Result   *types.PipelineResult
	CacheHit bool
}

// Pipeline wires the stages together. All stage fields are required; Cache
// may be cache.Nop{}.
type Pipeline struct {
	Validator   Validator
	Retriever   Retriever
	Scorer      Scorer
	Synthesizer Synthesizer
	Cache       cache.Cache
	Metrics     *metrics.Recorder
	Logger      *slog.Logger

	TopN         int
	StageRetries int
	StageTimeout time.Duration

	// Now and NewID are replaceable in tests.
	Now   func() time.Time
	NewID func() string
}

// Verify runs claim through the pipeline with default options.
func (p *Pipeline) Verify(ctx context.Context, claim string) (*types.PipelineResult, error) {
	out, err := p.Run(ctx, claim, Options{})
	return out.Result, err
}

// Run verifies raw. Validation failures return a *types.ValidationError;
// stage failures return a *types.StageError.
func (p *Pipeline) Run(ctx context.Context, raw string, opts Options) (Outcome, error) {
	runID := p.newID()
	log := p.logger().With("run_id", runID)
	start := time.Now()

	out, err := p.run(ctx, log, runID, raw, opts)

	switch {
	case err == nil && out.CacheHit:
		p.Metrics.Run(metrics.OutcomeCached)
	case err == nil:
		p.Metrics.Run(metrics.OutcomeVerified)
		p.Metrics.Verdict(string(out.Result.Verdict.Label))
	case isValidation(err):
		p.Metrics.Run(metrics.OutcomeInvalid)
	case types.IsTimeout(err):
		p.Metrics.Run(metrics.OutcomeTimeout)
	default:
		p.Metrics.Run(metrics.OutcomeFailed)
	}

	if err != nil {
		log.Info("run failed", "err", err, "elapsed", time.Since(start))
		return Outcome{}, err
	}
	log.Info("run complete",
		"cache_hit", out.CacheHit,
		"label", out.Result.Verdict.Label,
		"elapsed", time.Since(start))
	return out, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, runID, raw string, opts Options) (Outcome, error) {
	c, err := p.Validator.Validate(ctx, raw)
	if err != nil {
		if isValidation(err) {
			return Outcome{}, err
		}
		return Outcome{}, types.NewStageError(types.StageValidation, httputil.WrapTimeout(err))
	}
	log = log.With("claim", c.Normalized)

	if !opts.Refresh {
		cached, hit, err := p.Cache.Lookup(ctx, c.Normalized)
		p.Metrics.CacheLookup(hit, err)
		if err != nil {
			log.Warn("cache lookup failed, treating as miss", "err", err)
		} else if hit {
			return Outcome{Result: cached, CacheHit: true}, nil
		}
	}

	var ev retrieve.Evidence
	err = p.stage(ctx, log, types.StageRetrieval, func(ctx context.Context) error {
		var err error
		ev, err = p.Retriever.Retrieve(ctx, c)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	p.Metrics.QueriesFailed(len(ev.FailedQueries))

	var scored []types.ScoredStudy
	err = p.stage(ctx, log, types.StageScoring, func(ctx context.Context) error {
		var err error
		scored, err = p.Scorer.Score(ctx, c.Raw, ev.Studies)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	top := score.SelectTop(scored, p.TopN)

	var verdict types.Verdict
	err = p.stage(ctx, log, types.StageSynthesis, func(ctx context.Context) error {
		var err error
		verdict, err = p.Synthesizer.Synthesize(ctx, c.Raw, top)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	result := &types.PipelineResult{
		RunID:           runID,
		Claim:           c.Raw,
		NormalizedClaim: c.Normalized,
		Verdict:         verdict,
		TopStudies:      top,
		Queries:         ev.Queries,
		Stats: types.Stats{
			Found:    len(ev.Studies),
			Scored:   len(scored),
			Selected: len(top),
		},
		CreatedAt: p.now(),
	}

	if err := p.Cache.Store(ctx, c.Normalized, result); err != nil {
		log.Warn("cache store failed", "err", err)
	}
	return Outcome{Result: result}, nil
}

// stage runs fn under StageTimeout, retrying up to StageRetries times.
func (p *Pipeline) stage(ctx context.Context, log *slog.Logger, stage types.Stage, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.StageRetries; attempt++ {
		if attempt > 0 {
			log.Warn("retrying stage", "stage", stage, "attempt", attempt+1, "err", lastErr)
		}

		lastErr = p.attempt(ctx, stage, fn)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return types.NewStageError(stage, lastErr)
}

func (p *Pipeline) attempt(ctx context.Context, stage types.Stage, fn func(context.Context) error) error {
	if p.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.StageTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	p.Metrics.Stage(string(stage), time.Since(start), err)

	if err != nil && !types.IsTimeout(err) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s stage exceeded %s: %v", types.ErrTimeout, stage, p.StageTimeout, err)
	}
	return httputil.WrapTimeout(err)
}

func isValidation(err error) bool {
	var ve *types.ValidationError
	return errors.As(err, &ve)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now()
}

func (p *Pipeline) newID() string {
	if p.NewID == nil {
		return uuid.NewString()
	}
	return p.NewID()
}
