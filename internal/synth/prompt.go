// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synth

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/pdiddy/verity/internal/claim"
	"github.com/pdiddy/verity/internal/llm"
	"github.com/pdiddy/verity/pkg/types"
)

const writerSystemPrompt = `You are a health science communicator who explains research to everyday people. Read the studies and decide how well they support the health claim.

Verdict options:
- "Strongly Supported": several high-quality studies (meta-analyses or RCTs) show consistent benefit.
- "Supported": good quality studies show benefit with some consistency.
- "Partially Supported": mixed evidence, or support in a limited scope.
- "Inconclusive": conflicting results or low-quality studies.
- "Not Supported": quality studies show no benefit.
- "Contradicted": strong evidence against the claim.

Ignore studies that do not address the claim. If none do, answer "Inconclusive".

Writing rules:
- Plain, conversational language. No jargon.
- Cite studies naturally ("A 2021 trial found...").
- Only use numbers that appear in the studies below. Never invent statistics.
- Keep the whole answer under 150 words.

Respond with JSON only:
{
  "verdict": "one of the verdict options",
  "headline": "one sentence bottom line",
  "findings": ["finding 1", "finding 2", "finding 3"],
  "applicability": "who the evidence applies to",
  "dosage_timing": "dose or timing if the studies report it, otherwise empty",
  "caveats": "limitations and warnings"
}` + claim.SecurityInstruction

var writerPromptTmpl = template.Must(template.New("writer").Funcs(template.FuncMap{
	"inc":     func(i int) int { return i + 1 },
	"quality": qualityTier,
}).Parse(`Health claim:
{{.Claim}}

Studies:
{{range $i, $s := .Studies}}
Study {{inc $i}} [{{quality $s.Score}} quality]
- Title: {{$s.Title}}
- Journal: {{$s.Venue}}{{if $s.Year}} ({{$s.Year}}){{end}}
- Type: {{$s.Type}}
{{- if $s.SampleSize}}
- Sample size: {{$s.SampleSize}}
{{- end}}
- Abstract: {{$s.Abstract}}
{{end}}`))

// qualityTier describes a score in words. Numeric scores stay out of the
// prompt because the writer may only cite numbers found in the studies.
func qualityTier(score float64) string {
	switch {
	case score >= 7.5:
		return "high"
	case score >= 5:
		return "moderate"
	}
	return "low"
}

// LLMWriter drafts verdicts with a language model.
type LLMWriter struct {
	Client llm.Client
}

// Write implements Writer.
func (w *LLMWriter) Write(ctx context.Context, raw string, studies []types.ScoredStudy) (Draft, error) {
	var buf bytes.Buffer
	err := writerPromptTmpl.Execute(&buf, struct {
		Claim   string
		Studies []types.ScoredStudy
	}{
		Claim:   claim.Wrap(claim.Sanitize(raw)),
		Studies: studies,
	})
	if err != nil {
		return Draft{}, fmt.Errorf("rendering prompt: %w", err)
	}

	text, err := w.Client.Complete(ctx, llm.Request{
		System: writerSystemPrompt,
		Prompt: buf.String(),
	})
	if err != nil {
		return Draft{}, err
	}

	var d Draft
	if err := llm.DecodeJSON(text, &d); err != nil {
		return Draft{}, fmt.Errorf("decoding verdict: %w", err)
	}
	return d, nil
}
