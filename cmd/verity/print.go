// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/pdiddy/verity/pkg/types"
)

var (
	bold    = color.New(color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	warn    = color.New(color.FgYellow, color.Bold).SprintFunc()
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// labelColors colors the verdict line by how favorable it is to the claim.
var labelColors = map[types.Label]*color.Color{
	types.LabelStronglySupported:    color.New(color.FgGreen, color.Bold),
	types.LabelSupported:            color.New(color.FgGreen),
	types.LabelPartiallySupported:   color.New(color.FgYellow),
	types.LabelInconclusive:         color.New(color.FgYellow),
	types.LabelNotSupported:         color.New(color.FgRed),
	types.LabelContradicted:         color.New(color.FgRed, color.Bold),
	types.LabelInsufficientEvidence: color.New(color.FgHiBlack),
}

// printResult writes a human-readable rendering of r.
func printResult(w io.Writer, r *types.PipelineResult, cacheHit bool) {
	label := r.Verdict.Label
	c, ok := labelColors[label]
	if !ok {
		c = color.New(color.Reset)
	}

	fmt.Fprintf(w, "%s %s\n", bold("Claim:"), r.Claim)
	fmt.Fprintf(w, "%s %s\n", r.Verdict.Glyph, c.Sprint(label.Title()))
	if cacheHit {
		fmt.Fprintln(w, faint(fmt.Sprintf("(cached result from %s)", r.CreatedAt.Format("2006-01-02"))))
	}

	for _, sec := range r.Verdict.Synthesis.Sections() {
		if sec.Body == "" {
			continue
		}
		fmt.Fprintf(w, "\n%s\n%s\n", heading(sec.Title), sec.Body)
	}

	if len(r.TopStudies) > 0 {
		fmt.Fprintf(w, "\n%s\n", heading("Top Studies"))
		fmt.Fprintf(w, "%-5s  %-16s  %-6s  %-4s  %s\n", "Score", "Type", "N", "Year", "Title")
		fmt.Fprintln(w, strings.Repeat("-", 90))
		for _, s := range r.TopStudies {
			n := "-"
			if s.SampleSize > 0 {
				n = fmt.Sprint(s.SampleSize)
			}
			fmt.Fprintf(w, "%-5.1f  %-16s  %-6s  %-4d  %s\n", s.Score, s.Type, n, s.Year, truncate(s.Title, 50))
			if s.URL != "" {
				fmt.Fprintf(w, "%39s%s\n", "", faint(s.URL))
			}
		}
	}

	if len(r.Queries) > 0 {
		fmt.Fprintf(w, "\n%s\n", heading("Searches"))
		for _, q := range r.Queries {
			fmt.Fprintf(w, "  %s\n", q)
		}
	}

	fmt.Fprintf(w, "\n%d studies found, %d scored, %d selected\n",
		r.Stats.Found, r.Stats.Scored, r.Stats.Selected)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
