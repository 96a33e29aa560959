// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudyTypeStrengthOrder(t *testing.T) {
	order := []StudyType{
		StudyMetaAnalysis,
		StudySystematicReview,
		StudyRCT,
		StudyCohort,
		StudyCaseControl,
		StudyObservational,
		StudyReview,
		StudyOther,
	}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i-1].Strength(), order[i].Strength(), "%s should outrank %s", order[i-1], order[i])
	}
	assert.Equal(t, StudyOther.Strength(), StudyType("anecdote").Strength())
}

func TestParseStudyType(t *testing.T) {
	tests := []struct {
		in   string
		want StudyType
	}{
		{"RCT", StudyRCT},
		{"Randomized Controlled Trial", StudyRCT},
		{"Systematic Review", StudySystematicReview},
		{"meta_analysis", StudyMetaAnalysis},
		{"case_control", StudyCaseControl},
		{" cohort ", StudyCohort},
		{"letter", StudyOther},
		{"", StudyOther},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStudyType(tt.in))
		})
	}
}

func TestLabelGlyphs(t *testing.T) {
	seen := map[string]Label{}
	for _, l := range Labels {
		require.True(t, l.Valid(), l)
		g := l.Glyph()
		require.NotEmpty(t, g)
		if prev, dup := seen[g]; dup {
			t.Fatalf("glyph %q shared by %s and %s", g, prev, l)
		}
		seen[g] = l
	}

	assert.False(t, Label("probably").Valid())
	assert.Equal(t, LabelInconclusive.Glyph(), Label("probably").Glyph())
	assert.Equal(t, "Partially Supported", LabelPartiallySupported.Title())

	v := NewVerdict(LabelContradicted, Synthesis{})
	assert.Equal(t, "🚫", v.Glyph)
}

func TestSynthesisSections(t *testing.T) {
	s := Synthesis{
		Headline:      "Likely helps.",
		Findings:      []string{"a", "b"},
		Applicability: "Adults.",
		Caveats:       "Small trials.",
	}

	ids := func(secs []Section) []SectionID {
		var out []SectionID
		for _, sec := range secs {
			out = append(out, sec.ID)
		}
		return out
	}

	assert.Equal(t, []SectionID{SectionHeadline, SectionFindings, SectionApplicability, SectionCaveats}, ids(s.Sections()))
	assert.Equal(t, "- a\n- b", s.Sections()[1].Body)

	s.DosageTiming = "3-5 g daily"
	assert.Equal(t, []SectionID{SectionHeadline, SectionFindings, SectionApplicability, SectionDosageTiming, SectionCaveats}, ids(s.Sections()))
}

func TestCacheEntryExpired(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := CacheEntry{CreatedAt: created}
	ttl := 30 * 24 * time.Hour

	assert.False(t, e.Expired(created.Add(ttl-time.Second), ttl))
	assert.True(t, e.Expired(created.Add(ttl), ttl))
}

func TestStageError(t *testing.T) {
	assert.Nil(t, NewStageError(StageScoring, nil))

	cause := fmt.Errorf("calling model: %w", ErrTimeout)
	err := NewStageError(StageScoring, cause)

	stage, ok := StageOf(err)
	require.True(t, ok)
	assert.Equal(t, StageScoring, stage)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, "scoring failed: calling model: timed out", err.Error())

	// Re-wrapping for the same stage is a no-op.
	assert.Same(t, err, NewStageError(StageScoring, err))

	_, ok = StageOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.LLM.Provider = "cohere" }},
		{"zero top n", func(c *Config) { c.Pipeline.TopN = 0 }},
		{"too many queries", func(c *Config) { c.Pipeline.MaxQueries = 4 }},
		{"max below min", func(c *Config) { c.Claim.MaxLength = 5 }},
		{"cache path missing", func(c *Config) { c.Cache.Path = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Cache.Backend = CacheNone
	cfg.Cache.Path = ""
	assert.NoError(t, cfg.Validate())
}
