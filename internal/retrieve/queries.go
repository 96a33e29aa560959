// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"fmt"

	"github.com/pdiddy/verity/internal/claim"
	"github.com/pdiddy/verity/internal/llm"
)

const querySystemPrompt = `You are a biomedical research librarian. Generate 2-3 PubMed search queries that will find the strongest evidence about a health claim.

Requirements:
- Prefer meta-analyses, systematic reviews and randomized controlled trials.
- Use medical and scientific terminology.
- Include a study type keyword in each query.
- Keep each query short and specific; each must differ from the others.

Respond with JSON only:
{"queries": ["query 1", "query 2", "query 3"]}` + claim.SecurityInstruction

// LLMQueryGenerator asks a language model for search queries.
type LLMQueryGenerator struct {
	Client llm.Client
}

type queryResponse struct {
	Queries []string `json:"queries"`
}

// Generate implements QueryGenerator.
func (g *LLMQueryGenerator) Generate(ctx context.Context, raw string) ([]string, error) {
	text, err := g.Client.Complete(ctx, llm.Request{
		System:    querySystemPrompt,
		Prompt:    "Health claim:\n" + claim.Wrap(claim.Sanitize(raw)),
		MaxTokens: 512,
	})
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := llm.DecodeJSON(text, &resp); err != nil {
		return nil, fmt.Errorf("decoding queries: %w", err)
	}
	return resp.Queries, nil
}
