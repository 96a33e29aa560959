// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synth

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/verity/pkg/types"
)

// numberRe matches integers and decimals, with optional thousands separators.
var numberRe = regexp.MustCompile(`\d+(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)

// CheckGrounding returns one problem per number in syn that does not occur
// in the supplied evidence. Permitted numbers are those appearing in any
// study's title, venue or abstract, every sample size and year, and small
// counts up to the number of studies. Numbers from the claim itself are
// accepted only in the headline, which may restate the claim.
func CheckGrounding(syn types.Synthesis, claim string, studies []types.ScoredStudy) []string {
	allowed := make(map[string]bool)
	addText := func(s string) {
		for _, tok := range numberRe.FindAllString(s, -1) {
			allowed[canonicalNumber(tok)] = true
		}
	}
	fromClaim := make(map[string]bool)
	for _, tok := range numberRe.FindAllString(claim, -1) {
		fromClaim[canonicalNumber(tok)] = true
	}

	for _, st := range studies {
		addText(st.Title)
		addText(st.Venue)
		addText(st.Abstract)
		if st.SampleSize > 0 {
			allowed[strconv.Itoa(st.SampleSize)] = true
		}
		if st.Year > 0 {
			allowed[strconv.Itoa(st.Year)] = true
		}
	}
	for i := 0; i <= len(studies); i++ {
		allowed[strconv.Itoa(i)] = true
	}

	var problems []string
	for _, sec := range syn.Sections() {
		for _, tok := range numberRe.FindAllString(sec.Body, -1) {
			n := canonicalNumber(tok)
			if allowed[n] || (sec.ID == types.SectionHeadline && fromClaim[n]) {
				continue
			}
			problems = append(problems, fmt.Sprintf("ungrounded number %q in %s", tok, sec.ID))
		}
	}
	return problems
}

// canonicalNumber strips separators and trailing zeros so "1,000" matches
// "1000" and "2.50" matches "2.5".
func canonicalNumber(tok string) string {
	tok = strings.ReplaceAll(tok, ",", "")
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return tok
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
