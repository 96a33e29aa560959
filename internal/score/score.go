// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score assigns each retrieved study a quality score in [0,10] with
// a rationale, in a single batched evaluator call, and selects the top N.
// The evaluator's response must account for every input study exactly once.
package score

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/pdiddy/verity/pkg/types"
)

// MaxScore is the upper bound of the quality scale.
const MaxScore = 10.0

// Item is one entry of the evaluator's response.
type Item struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// Evaluator scores a batch of studies in one call. The LLM-backed
// implementation lives in prompt.go; tests supply a mock.
type Evaluator interface {
	Evaluate(ctx context.Context, claim string, studies []types.Study) ([]Item, error)
}

// Scorer runs the scoring stage.
type Scorer struct {
	Evaluator Evaluator
}

// Score returns the studies annotated with scores, in input order. An
// empty input returns nil without calling the evaluator. A response that
// violates its contract yields a *types.ContractError.
func (s *Scorer) Score(ctx context.Context, claim string, studies []types.Study) ([]types.ScoredStudy, error) {
	if len(studies) == 0 {
		return nil, nil
	}

	items, err := s.Evaluator.Evaluate(ctx, claim, studies)
	if err != nil {
		return nil, err
	}

	return attach(studies, items)
}

// attach checks that items map one-to-one onto studies and joins them.
func attach(studies []types.Study, items []Item) ([]types.ScoredStudy, error) {
	var problems []string
	if len(items) != len(studies) {
		problems = append(problems, fmt.Sprintf("expected %d scores, got %d", len(studies), len(items)))
	}

	want := make(map[string]bool, len(studies))
	for _, st := range studies {
		want[st.ID] = true
	}

	byID := make(map[string]Item, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.ID)
		switch {
		case !want[id]:
			problems = append(problems, fmt.Sprintf("unknown id %q", it.ID))
			continue
		case hasKey(byID, id):
			problems = append(problems, fmt.Sprintf("duplicate id %q", id))
			continue
		}
		if math.IsNaN(it.Score) || it.Score < 0 || it.Score > MaxScore {
			problems = append(problems, fmt.Sprintf("id %s: score %v outside [0,%v]", id, it.Score, MaxScore))
		}
		if strings.TrimSpace(it.Rationale) == "" {
			problems = append(problems, fmt.Sprintf("id %s: empty rationale", id))
		}
		byID[id] = it
	}

	for _, st := range studies {
		if !hasKey(byID, st.ID) {
			problems = append(problems, fmt.Sprintf("missing id %q", st.ID))
		}
	}

	if len(problems) > 0 {
		return nil, &types.ContractError{Problems: problems}
	}

	out := make([]types.ScoredStudy, len(studies))
	for i, st := range studies {
		it := byID[st.ID]
		out[i] = types.ScoredStudy{Study: st, Score: it.Score, Rationale: strings.TrimSpace(it.Rationale)}
	}
	return out, nil
}

func hasKey(m map[string]Item, k string) bool {
	_, ok := m[k]
	return ok
}

// SelectTop returns the best min(n, len(scored)) studies ordered by score,
// then study-type strength, then year, all descending. Equal studies keep
// their input order. The input slice is not modified.
func SelectTop(scored []types.ScoredStudy, n int) []types.ScoredStudy {
	if n <= 0 || len(scored) == 0 {
		return nil
	}

	sorted := slices.Clone(scored)
	slices.SortStableFunc(sorted, func(a, b types.ScoredStudy) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Type.Strength(), a.Type.Strength()); c != 0 {
			return c
		}
		return cmp.Compare(b.Year, a.Year)
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
