// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/pdiddy/verity/internal/claim"
	"github.com/pdiddy/verity/internal/llm"
	"github.com/pdiddy/verity/pkg/types"
)

const scoringSystemPrompt = `You are a scientific quality assessor. Score every study from 0 to 10.

Criteria:
1. Study type (40%): meta-analysis 9-10, systematic review 7-8, randomized controlled trial 6-7, cohort or other observational 3-5, case report or other 1-3.
2. Sample size (30%): above 1000 full points, 500-1000 good, 100-500 moderate, below 100 low. A size of 0 means not stated; for pooled analyses treat it as moderate.
3. Venue (20%): high-impact general journals high, reputable specialist journals moderate, others low to moderate.
4. Recency (10%): last 2 years full, 2-5 years good, 5-10 years moderate, older low.

Return one entry per study, using the study's id exactly as given. Do not add or omit studies.

Respond with JSON only:
{"scores": [{"id": "<id>", "score": 8.5, "rationale": "one or two sentences"}]}` + claim.SecurityInstruction

var scoringPromptTmpl = template.Must(template.New("scoring").Parse(`Health claim:
{{.Claim}}

Studies ({{len .Studies}}):
{{range .Studies}}
- id: {{.ID}}
  title: {{.Title}}
  type: {{.Type}}
  sample_size: {{.SampleSize}}
  year: {{.Year}}
  venue: {{.Venue}}
{{end}}`))

// LLMEvaluator scores studies with a language model.
type LLMEvaluator struct {
	Client llm.Client
}

type scoringResponse struct {
	Scores []Item `json:"scores"`
}

// Evaluate implements Evaluator.
func (e *LLMEvaluator) Evaluate(ctx context.Context, raw string, studies []types.Study) ([]Item, error) {
	prompt, err := renderPrompt(raw, studies)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	text, err := e.Client.Complete(ctx, llm.Request{
		System:    scoringSystemPrompt,
		Prompt:    prompt,
		MaxTokens: 256 + 128*len(studies),
	})
	if err != nil {
		return nil, err
	}

	var resp scoringResponse
	if err := llm.DecodeJSON(text, &resp); err != nil {
		return nil, fmt.Errorf("decoding scores: %w", err)
	}
	return resp.Scores, nil
}

func renderPrompt(raw string, studies []types.Study) (string, error) {
	var buf bytes.Buffer
	err := scoringPromptTmpl.Execute(&buf, struct {
		Claim   string
		Studies []types.Study
	}{
		Claim:   claim.Wrap(claim.Sanitize(raw)),
		Studies: studies,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
