// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synth turns the top scored studies into a verdict label and a
// sectioned plain-language synthesis. When too few studies survive
// selection it returns an insufficient-evidence verdict without calling the
// writer. Model output is remapped onto the fixed label set, checked for
// required sections, and every number it states must trace back to the
// supplied studies.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/verity/pkg/types"
)

// Draft is the writer's raw output before validation.
type Draft struct {
	Label         string   `json:"verdict"`
	Headline      string   `json:"headline"`
	Findings      []string `json:"findings"`
	Applicability string   `json:"applicability"`
	DosageTiming  string   `json:"dosage_timing"`
	Caveats       string   `json:"caveats"`
}

// Writer drafts a verdict from studies. LLMWriter is the production
// implementation.
type Writer interface {
	Write(ctx context.Context, claim string, studies []types.ScoredStudy) (Draft, error)
}

// Synthesizer runs the synthesis stage.
type Synthesizer struct {
	Writer     Writer
	MinStudies int
	Logger     *slog.Logger
}

// New returns a Synthesizer. minStudies below 1 is raised to 1.
func New(w Writer, minStudies int, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	if minStudies < 1 {
		minStudies = 1
	}
	return &Synthesizer{Writer: w, MinStudies: minStudies, Logger: logger}
}

// Synthesize produces the verdict for claim from studies.
func (s *Synthesizer) Synthesize(ctx context.Context, claim string, studies []types.ScoredStudy) (types.Verdict, error) {
	if len(studies) < s.MinStudies {
		s.Logger.Info("too few studies for a verdict", "studies", len(studies), "min", s.MinStudies)
		return InsufficientEvidence(len(studies)), nil
	}

	d, err := s.Writer.Write(ctx, claim, studies)
	if err != nil {
		return types.Verdict{}, err
	}

	syn, err := checkDraft(d)
	if err != nil {
		return types.Verdict{}, err
	}

	if problems := CheckGrounding(syn, claim, studies); len(problems) > 0 {
		return types.Verdict{}, &types.ContractError{Problems: problems}
	}

	label, exact := ParseLabel(d.Label)
	if !exact {
		s.Logger.Debug("remapped verdict label", "raw", d.Label, "label", label)
	}
	return types.NewVerdict(label, syn), nil
}

// checkDraft trims the draft and requires every mandatory section.
func checkDraft(d Draft) (types.Synthesis, error) {
	syn := types.Synthesis{
		Headline:      strings.TrimSpace(d.Headline),
		Applicability: strings.TrimSpace(d.Applicability),
		DosageTiming:  strings.TrimSpace(d.DosageTiming),
		Caveats:       strings.TrimSpace(d.Caveats),
	}
	for _, f := range d.Findings {
		if f = strings.TrimSpace(f); f != "" {
			syn.Findings = append(syn.Findings, f)
		}
	}

	var problems []string
	missing := func(id types.SectionID) {
		problems = append(problems, fmt.Sprintf("missing section %s", id))
	}
	if syn.Headline == "" {
		missing(types.SectionHeadline)
	}
	if len(syn.Findings) == 0 {
		missing(types.SectionFindings)
	}
	if syn.Applicability == "" {
		missing(types.SectionApplicability)
	}
	if syn.Caveats == "" {
		missing(types.SectionCaveats)
	}
	if len(problems) > 0 {
		return types.Synthesis{}, &types.ContractError{Problems: problems}
	}
	return syn, nil
}

// InsufficientEvidence is the verdict returned when found studies fall
// short of the minimum.
func InsufficientEvidence(found int) types.Verdict {
	finding := "No studies addressing this claim were found in PubMed."
	if found > 0 {
		finding = "Too few relevant studies were found to judge the claim reliably."
	}
	return types.NewVerdict(types.LabelInsufficientEvidence, types.Synthesis{
		Headline:      "There is not enough published research to evaluate this claim.",
		Findings:      []string{finding},
		Applicability: "Unknown until more research is available.",
		Caveats:       "A lack of evidence is not evidence against the claim. Try rephrasing it, or ask a healthcare professional.",
	})
}
