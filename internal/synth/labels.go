// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synth

import (
	"strings"
	"unicode"

	"github.com/pdiddy/verity/pkg/types"
)

// labelAliases maps phrasings models commonly use onto the fixed labels.
// Keys are in folded form (see foldLabel).
var labelAliases = map[string]types.Label{
	"strong support":        types.LabelStronglySupported,
	"strongly supports":     types.LabelStronglySupported,
	"support":               types.LabelSupported,
	"supports":              types.LabelSupported,
	"partial support":       types.LabelPartiallySupported,
	"partially supports":    types.LabelPartiallySupported,
	"mixed":                 types.LabelPartiallySupported,
	"mixed evidence":        types.LabelPartiallySupported,
	"not support":           types.LabelNotSupported,
	"does not support":      types.LabelNotSupported,
	"unsupported":           types.LabelNotSupported,
	"no support":            types.LabelNotSupported,
	"contradict":            types.LabelContradicted,
	"contradicts":           types.LabelContradicted,
	"contradiction":         types.LabelContradicted,
	"refuted":               types.LabelContradicted,
	"uncertain":             types.LabelInconclusive,
	"unclear":               types.LabelInconclusive,
	"insufficient":          types.LabelInconclusive,
	"insufficient evidence": types.LabelInconclusive,
}

// substringOrder is checked in order; "supported" must come last since the
// other phrases contain it.
var substringOrder = []struct {
	phrase string
	label  types.Label
}{
	{"strongly supported", types.LabelStronglySupported},
	{"partially supported", types.LabelPartiallySupported},
	{"not supported", types.LabelNotSupported},
	{"contradict", types.LabelContradicted},
	{"inconclusive", types.LabelInconclusive},
	{"supported", types.LabelSupported},
}

// ParseLabel maps a model-supplied label onto the fixed set. exact is false
// when the label had to be remapped. Anything unrecognized becomes
// LabelInconclusive. The writer is never allowed to choose
// LabelInsufficientEvidence; that label is reserved for runs without
// enough studies.
func ParseLabel(raw string) (label types.Label, exact bool) {
	key := foldLabel(raw)

	for _, l := range types.Labels {
		if l == types.LabelInsufficientEvidence {
			continue
		}
		if key == foldLabel(string(l)) {
			return l, strings.TrimSpace(raw) == l.Title() || strings.TrimSpace(raw) == string(l)
		}
	}

	if l, ok := labelAliases[key]; ok {
		return l, false
	}

	if l, ok := negatedLabel(key); ok {
		return l, false
	}

	for _, s := range substringOrder {
		if strings.Contains(key, s.phrase) {
			return s.label, false
		}
	}
	return types.LabelInconclusive, false
}

// negations are words that flip the support or contradiction phrase they
// precede.
var negations = map[string]bool{
	"not": true, "no": true, "never": true, "cannot": true, "isn't": true,
	"doesn't": true, "lacks": true, "lacking": true, "without": true,
}

// degreeWords soften a negated "supported": "not strongly supported" still
// reports some support.
var degreeWords = map[string]bool{
	"strongly": true, "fully": true, "entirely": true, "completely": true,
	"conclusively": true, "clearly": true,
}

// negatedLabel resolves labels whose first support or contradiction word is
// negated, which plain substring matching would read as the opposite
// verdict. ok is false when the label carries no such negation.
func negatedLabel(key string) (label types.Label, ok bool) {
	words := strings.FieldsFunc(key, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for i, w := range words {
		switch {
		case strings.HasPrefix(w, "unsupport"), w == "unproven", w == "unfounded":
			return types.LabelNotSupported, true
		case strings.HasPrefix(w, "contradict"):
			if negatedAt(words, i) {
				return types.LabelInconclusive, true
			}
			return "", false
		case strings.HasPrefix(w, "support"):
			if !negatedAt(words, i) {
				return "", false
			}
			if i > 0 && degreeWords[words[i-1]] {
				return types.LabelPartiallySupported, true
			}
			return types.LabelNotSupported, true
		}
	}
	return "", false
}

// negatedAt reports whether one of the three words before words[i] is a
// negation.
func negatedAt(words []string, i int) bool {
	for j := max(0, i-3); j < i; j++ {
		if negations[words[j]] {
			return true
		}
	}
	return false
}

func foldLabel(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
