// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/verity/internal/llm"
	"github.com/pdiddy/verity/pkg/types"
)

type mockEvaluator struct {
	items []Item
	err   error
	calls int
}

func (m *mockEvaluator) Evaluate(_ context.Context, _ string, _ []types.Study) ([]Item, error) {
	m.calls++
	return m.items, m.err
}

var testStudies = []types.Study{
	{ID: "1", Title: "A", Type: types.StudyRCT, Year: 2020},
	{ID: "2", Title: "B", Type: types.StudyMetaAnalysis, Year: 2018},
	{ID: "3", Title: "C", Type: types.StudyCohort, Year: 2022},
}

func TestScore_Valid(t *testing.T) {
	ev := &mockEvaluator{items: []Item{
		{ID: "3", Score: 4, Rationale: "cohort"},
		{ID: "1", Score: 6.5, Rationale: " rct "},
		{ID: "2", Score: 9, Rationale: "meta"},
	}}
	s := &Scorer{Evaluator: ev}

	got, err := s.Score(context.Background(), "claim", testStudies)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Results follow input order, not response order.
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, 6.5, got[0].Score)
	assert.Equal(t, "rct", got[0].Rationale)
	assert.Equal(t, "2", got[1].ID)
	assert.Equal(t, 9.0, got[1].Score)
	assert.Equal(t, "3", got[2].ID)
}

func TestScore_EmptyInputSkipsEvaluator(t *testing.T) {
	ev := &mockEvaluator{}
	s := &Scorer{Evaluator: ev}

	got, err := s.Score(context.Background(), "claim", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, ev.calls)
}

func TestScore_EvaluatorError(t *testing.T) {
	s := &Scorer{Evaluator: &mockEvaluator{err: types.ErrTimeout}}
	_, err := s.Score(context.Background(), "claim", testStudies)
	assert.ErrorIs(t, err, types.ErrTimeout)
}

func TestScore_ContractViolations(t *testing.T) {
	ok := func(id string) Item { return Item{ID: id, Score: 5, Rationale: "fine"} }

	tests := []struct {
		name    string
		items   []Item
		problem string
	}{
		{"missing study", []Item{ok("1"), ok("2")}, `missing id "3"`},
		{"extra study", []Item{ok("1"), ok("2"), ok("3"), ok("4")}, `unknown id "4"`},
		{"duplicate id", []Item{ok("1"), ok("1"), ok("2")}, `duplicate id "1"`},
		{"score too high", []Item{ok("1"), ok("2"), {ID: "3", Score: 11, Rationale: "x"}}, "outside [0,10]"},
		{"negative score", []Item{ok("1"), ok("2"), {ID: "3", Score: -1, Rationale: "x"}}, "outside [0,10]"},
		{"nan score", []Item{ok("1"), ok("2"), {ID: "3", Score: math.NaN(), Rationale: "x"}}, "outside [0,10]"},
		{"empty rationale", []Item{ok("1"), ok("2"), {ID: "3", Score: 3, Rationale: "  "}}, "empty rationale"},
		{"empty response", nil, "expected 3 scores, got 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Scorer{Evaluator: &mockEvaluator{items: tt.items}}
			_, err := s.Score(context.Background(), "claim", testStudies)
			require.Error(t, err)

			var ce *types.ContractError
			require.True(t, errors.As(err, &ce))
			assert.Contains(t, ce.Error(), tt.problem)
		})
	}
}

func TestScore_BoundaryScoresAccepted(t *testing.T) {
	s := &Scorer{Evaluator: &mockEvaluator{items: []Item{
		{ID: "1", Score: 0, Rationale: "weak"},
		{ID: "2", Score: 10, Rationale: "strong"},
		{ID: "3", Score: 5, Rationale: "middling"},
	}}}
	_, err := s.Score(context.Background(), "claim", testStudies)
	assert.NoError(t, err)
}

func scored(id string, score float64, typ types.StudyType, year int) types.ScoredStudy {
	return types.ScoredStudy{Study: types.Study{ID: id, Type: typ, Year: year}, Score: score, Rationale: "r"}
}

func TestSelectTop(t *testing.T) {
	in := []types.ScoredStudy{
		scored("low", 3, types.StudyMetaAnalysis, 2024),
		scored("rct-old", 8, types.StudyRCT, 2010),
		scored("meta", 8, types.StudyMetaAnalysis, 2005),
		scored("rct-new", 8, types.StudyRCT, 2021),
		scored("top", 9.5, types.StudyCohort, 2000),
		scored("tie-a", 5, types.StudyCohort, 2015),
		scored("tie-b", 5, types.StudyCohort, 2015),
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"top three", 3, []string{"top", "meta", "rct-new"}},
		{"all with stable ties", 10, []string{"top", "meta", "rct-new", "rct-old", "tie-a", "tie-b", "low"}},
		{"zero", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectTop(in, tt.n)
			var ids []string
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	assert.Equal(t, "low", in[0].ID, "input is not reordered")
}

func TestSelectTop_DeterministicAcrossCalls(t *testing.T) {
	in := []types.ScoredStudy{
		scored("a", 7, types.StudyRCT, 2020),
		scored("b", 7, types.StudyRCT, 2020),
		scored("c", 7, types.StudyRCT, 2020),
	}
	first := SelectTop(in, 2)
	for range 5 {
		assert.Equal(t, first, SelectTop(in, 2))
	}
}

type stubClient struct {
	text string
	err  error
	last llm.Request
}

func (s *stubClient) Complete(_ context.Context, req llm.Request) (string, error) {
	s.last = req
	return s.text, s.err
}

func TestLLMEvaluator(t *testing.T) {
	c := &stubClient{text: "```json\n" + `{"scores": [{"id": "1", "score": 7, "rationale": "solid trial"}]}` + "\n```"}
	e := &LLMEvaluator{Client: c}

	items, err := e.Evaluate(context.Background(), "creatine helps", testStudies[:1])
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: "1", Score: 7, Rationale: "solid trial"}}, items)

	assert.Contains(t, c.last.Prompt, "<USER_CLAIM>creatine helps</USER_CLAIM>")
	assert.Contains(t, c.last.Prompt, "- id: 1")
	assert.Contains(t, c.last.Prompt, "type: rct")
	assert.Contains(t, c.last.System, "Study type (40%)")
}

func TestLLMEvaluator_Errors(t *testing.T) {
	_, err := (&LLMEvaluator{Client: &stubClient{err: types.ErrTimeout}}).Evaluate(context.Background(), "x", testStudies)
	assert.ErrorIs(t, err, types.ErrTimeout)

	_, err = (&LLMEvaluator{Client: &stubClient{text: "I cannot score these"}}).Evaluate(context.Background(), "x", testStudies)
	assert.Error(t, err)
}
