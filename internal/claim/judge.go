// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package claim

import (
	"context"
	"fmt"

	"github.com/pdiddy/verity/internal/llm"
)

const judgeSystemPrompt = `You are a health claim validator. Decide whether a claim is specific enough to search the biomedical literature for evidence.

A valid claim names:
1. A specific intervention (supplement, treatment, activity, food, exposure).
2. A specific outcome (the effect or condition being measured).

Valid:
- "Does creatine improve muscle strength?"
- "Can vitamin D reduce depression symptoms?"

Too vague:
- "red light therapy" (no outcome)
- "is turmeric good for you" (outcome too vague)

Respond with JSON only:
{"valid": true or false, "reason": "one short sentence", "suggestions": ["specific claim 1", "specific claim 2", "specific claim 3"]}

When the claim is invalid give two or three specific claims about the same topic. When it is valid, suggestions may be empty.` + SecurityInstruction

// LLMJudge asks a language model whether a claim is checkable.
type LLMJudge struct {
	Client llm.Client
}

// Judge implements Judge.
func (j *LLMJudge) Judge(ctx context.Context, claim string) (Judgment, error) {
	text, err := j.Client.Complete(ctx, llm.Request{
		System:    judgeSystemPrompt,
		Prompt:    "Analyze this health claim:\n" + Wrap(Sanitize(claim)),
		MaxTokens: 512,
	})
	if err != nil {
		return Judgment{}, err
	}

	var out Judgment
	if err := llm.DecodeJSON(text, &out); err != nil {
		return Judgment{}, fmt.Errorf("decoding judgment: %w", err)
	}
	return out, nil
}
