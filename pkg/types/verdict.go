// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Label is a verdict category. The set is fixed and ordered from strongest
// support to outright contradiction, followed by the terminal
// LabelInsufficientEvidence used when no usable evidence was retrieved.
type Label string

const (
	LabelStronglySupported    Label = "strongly_supported"
	LabelSupported            Label = "supported"
	LabelPartiallySupported   Label = "partially_supported"
	LabelInconclusive         Label = "inconclusive"
	LabelNotSupported         Label = "not_supported"
	LabelContradicted         Label = "contradicted"
	LabelInsufficientEvidence Label = "insufficient_evidence"
)

// Labels lists every label in display order.
var Labels = []Label{
	LabelStronglySupported,
	LabelSupported,
	LabelPartiallySupported,
	LabelInconclusive,
	LabelNotSupported,
	LabelContradicted,
	LabelInsufficientEvidence,
}

var labelInfo = map[Label]struct {
	title string
	glyph string
}{
	LabelStronglySupported:    {"Strongly Supported", "✅"},
	LabelSupported:            {"Supported", "✓"},
	LabelPartiallySupported:   {"Partially Supported", "⚖️"},
	LabelInconclusive:         {"Inconclusive", "❓"},
	LabelNotSupported:         {"Not Supported", "❌"},
	LabelContradicted:         {"Contradicted", "🚫"},
	LabelInsufficientEvidence: {"Insufficient Evidence", "🔍"},
}

// Valid reports whether l is one of the fixed labels.
func (l Label) Valid() bool {
	_, ok := labelInfo[l]
	return ok
}

// Title returns the human-readable label, e.g. "Partially Supported".
func (l Label) Title() string {
	if info, ok := labelInfo[l]; ok {
		return info.title
	}
	return labelInfo[LabelInconclusive].title
}

// Glyph returns the display glyph for the label. The glyph is always
// derived from the label and never taken from model output.
func (l Label) Glyph() string {
	if info, ok := labelInfo[l]; ok {
		return info.glyph
	}
	return labelInfo[LabelInconclusive].glyph
}

// SectionID is the stable identifier of a synthesis section.
type SectionID string

const (
	SectionHeadline      SectionID = "headline"
	SectionFindings      SectionID = "findings"
	SectionApplicability SectionID = "applicability"
	SectionDosageTiming  SectionID = "dosage_timing"
	SectionCaveats       SectionID = "caveats"
)

// Section is one addressable block of the synthesis.
type Section struct {
	ID    SectionID `json:"id" yaml:"id"`
	Title string    `json:"title" yaml:"title"`
	Body  string    `json:"body" yaml:"body"`
}

// Synthesis is the structured explanation accompanying a verdict.
// DosageTiming is optional; the other sections are always present.
type Synthesis struct {
	Headline      string   `json:"headline" yaml:"headline"`
	Findings      []string `json:"findings" yaml:"findings"`
	Applicability string   `json:"applicability" yaml:"applicability"`
	DosageTiming  string   `json:"dosage_timing,omitempty" yaml:"dosage_timing,omitempty"`
	Caveats       string   `json:"caveats" yaml:"caveats"`
}

// Sections returns the synthesis as ordered sections. DosageTiming is
// omitted when empty.
func (s Synthesis) Sections() []Section {
	findings := ""
	for i, f := range s.Findings {
		if i > 0 {
			findings += "\n"
		}
		findings += "- " + f
	}

	out := []Section{
		{ID: SectionHeadline, Title: "Bottom Line", Body: s.Headline},
		{ID: SectionFindings, Title: "What Research Found", Body: findings},
		{ID: SectionApplicability, Title: "Who It Applies To", Body: s.Applicability},
	}
	if s.DosageTiming != "" {
		out = append(out, Section{ID: SectionDosageTiming, Title: "Dosage and Timing", Body: s.DosageTiming})
	}
	out = append(out, Section{ID: SectionCaveats, Title: "Caveats", Body: s.Caveats})
	return out
}

// Verdict is the label plus its synthesis.
type Verdict struct {
	Label     Label     `json:"label" yaml:"label"`
	Glyph     string    `json:"glyph" yaml:"glyph"`
	Synthesis Synthesis `json:"synthesis" yaml:"synthesis"`
}

// NewVerdict builds a Verdict whose glyph matches its label.
func NewVerdict(label Label, s Synthesis) Verdict {
	return Verdict{Label: label, Glyph: label.Glyph(), Synthesis: s}
}
