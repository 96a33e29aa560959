// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the verity pipeline:
// claims, studies, scored evidence, verdicts, cached results, errors,
// and the configuration object built at startup.
package types

import "strings"

// StudyType classifies a study by design. The zero value is StudyOther.
type StudyType string

const (
	StudyMetaAnalysis     StudyType = "meta-analysis"
	StudySystematicReview StudyType = "systematic-review"
	StudyRCT              StudyType = "rct"
	StudyCohort           StudyType = "cohort"
	StudyCaseControl      StudyType = "case-control"
	StudyObservational    StudyType = "observational"
	StudyReview           StudyType = "review"
	StudyOther            StudyType = "other"
)

// studyStrength orders study types by evidentiary strength, highest first.
var studyStrength = map[StudyType]int{
	StudyMetaAnalysis:     8,
	StudySystematicReview: 7,
	StudyRCT:              6,
	StudyCohort:           5,
	StudyCaseControl:      4,
	StudyObservational:    3,
	StudyReview:           2,
	StudyOther:            1,
}

// Strength returns the rank of the study type; unknown types rank with StudyOther.
func (t StudyType) Strength() int {
	if s, ok := studyStrength[t]; ok {
		return s
	}
	return studyStrength[StudyOther]
}

// ParseStudyType maps free-form labels ("RCT", "Systematic Review",
// "case_control") onto the fixed set. Unrecognized labels become StudyOther.
func ParseStudyType(s string) StudyType {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	switch key {
	case "meta-analysis", "metaanalysis":
		return StudyMetaAnalysis
	case "systematic-review":
		return StudySystematicReview
	case "rct", "randomized-controlled-trial", "randomised-controlled-trial", "randomized-trial":
		return StudyRCT
	case "cohort", "cohort-study":
		return StudyCohort
	case "case-control":
		return StudyCaseControl
	case "observational":
		return StudyObservational
	case "review":
		return StudyReview
	}
	return StudyOther
}

// Study is one literature record returned by the search provider.
// ID is the provider identifier (a PubMed PMID) and the sole deduplication key.
type Study struct {
	// ID is the provider's unique identifier.
	ID string `json:"id" yaml:"id"`

	// Title is the article title.
	Title string `json:"title" yaml:"title"`

	// Authors lists display names, possibly truncated with "et al.".
	Authors []string `json:"authors" yaml:"authors"`

	// Venue is the journal or publication venue.
	Venue string `json:"venue" yaml:"venue"`

	// Year is the publication year, 0 if unknown.
	Year int `json:"year" yaml:"year"`

	// Type is the study design inferred from the record.
	Type StudyType `json:"type" yaml:"type"`

	// SampleSize is the number of participants, 0 if not stated.
	SampleSize int `json:"sample_size" yaml:"sample_size"`

	// Abstract is the abstract text, possibly reduced to results and conclusions.
	Abstract string `json:"abstract" yaml:"abstract"`

	// URL is the canonical link to the record.
	URL string `json:"url" yaml:"url"`
}

// ScoredStudy is a Study annotated with a quality score in [0,10] and the
// rationale the evaluator gave for it.
type ScoredStudy struct {
	Study `yaml:",inline"`

	Score     float64 `json:"score" yaml:"score"`
	Rationale string  `json:"rationale" yaml:"rationale"`
}
