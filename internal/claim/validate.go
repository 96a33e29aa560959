// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package claim

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/verity/pkg/types"
)

// Judgment is the checkability decision for one claim.
type Judgment struct {
	Valid       bool     `json:"valid"`
	Reason      string   `json:"reason"`
	Suggestions []string `json:"suggestions"`
}

// Judge decides whether a claim names a specific intervention and outcome.
type Judge interface {
	Judge(ctx context.Context, claim string) (Judgment, error)
}

// maxSuggestions caps the example claims returned with a rejection.
const maxSuggestions = 3

// exampleClaims are returned when a rejection carries no suggestions of its own.
var exampleClaims = []string{
	"Does creatine improve muscle strength?",
	"Can vitamin D supplements reduce depression symptoms?",
	"Does intermittent fasting help with weight loss?",
}

// Validator accepts or rejects raw claims. Length checks run first and never
// reach the Judge; a nil Judge accepts every claim within bounds.
type Validator struct {
	MinLength int
	MaxLength int
	Judge     Judge
	Logger    *slog.Logger
}

// NewValidator returns a Validator using the bounds from cfg. The judge is
// dropped when cfg.Judge is false.
func NewValidator(cfg types.ClaimConfig, judge Judge, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Judge {
		judge = nil
	}
	return &Validator{
		MinLength: cfg.MinLength,
		MaxLength: cfg.MaxLength,
		Judge:     judge,
		Logger:    logger,
	}
}

// Validate returns the normalized claim, a *types.ValidationError when the
// claim is rejected, or a plain error when the judge itself fails.
func (v *Validator) Validate(ctx context.Context, raw string) (types.Claim, error) {
	text := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(text)

	if v.MinLength > 0 && n < v.MinLength {
		return types.Claim{}, reject(fmt.Sprintf("claim is too short (%d characters, minimum %d)", n, v.MinLength), nil)
	}
	if v.MaxLength > 0 && n > v.MaxLength {
		return types.Claim{}, reject(fmt.Sprintf("claim is too long (%d characters, maximum %d)", n, v.MaxLength), nil)
	}

	c := types.Claim{Raw: text, Normalized: Normalize(text)}
	if c.Normalized == "" {
		return types.Claim{}, reject("claim contains no searchable words", nil)
	}

	if Suspicious(text) {
		v.Logger.Warn("suspicious claim text, sanitizing before prompting", "normalized", c.Normalized)
	}

	if v.Judge == nil {
		return c, nil
	}

	j, err := v.Judge.Judge(ctx, text)
	if err != nil {
		return types.Claim{}, fmt.Errorf("judging claim: %w", err)
	}
	if !j.Valid {
		reason := strings.TrimSpace(j.Reason)
		if reason == "" {
			reason = "claim does not name a specific intervention and outcome"
		}
		return types.Claim{}, reject(reason, j.Suggestions)
	}

	return c, nil
}

// reject builds a ValidationError with one to three suggestions.
func reject(reason string, suggestions []string) *types.ValidationError {
	var clean []string
	for _, s := range suggestions {
		if s = strings.TrimSpace(s); s != "" {
			clean = append(clean, s)
		}
		if len(clean) == maxSuggestions {
			break
		}
	}
	if len(clean) == 0 {
		clean = append(clean, exampleClaims...)
	}
	return &types.ValidationError{Reason: reason, Suggestions: clean}
}
