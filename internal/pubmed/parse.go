// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/verity/pkg/types"
)

// articleURL is the canonical record URL; %s is the PMID.
const articleURL = "https://pubmed.ncbi.nlm.nih.gov/%s/"

// maxAuthors is the number of authors listed before "et al.".
const maxAuthors = 3

type articleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Journal struct {
				Title   string `xml:"Title"`
				PubDate struct {
					Year        string `xml:"Year"`
					MedlineDate string `xml:"MedlineDate"`
				} `xml:"JournalIssue>PubDate"`
			} `xml:"Journal"`
			Title    markup `xml:"ArticleTitle"`
			Abstract []struct {
				Label string `xml:"Label,attr"`
				markup
			} `xml:"Abstract>AbstractText"`
			Authors []struct {
				LastName   string `xml:"LastName"`
				Initials   string `xml:"Initials"`
				Collective string `xml:"CollectiveName"`
			} `xml:"AuthorList>Author"`
			PublicationTypes []string `xml:"PublicationTypeList>PublicationType"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}

// markup captures element content including inline tags such as <i> and <sup>.
type markup struct {
	Inner string `xml:",innerxml"`
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

func (m markup) text() string {
	s := tagPattern.ReplaceAllString(m.Inner, "")
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// ParseArticles decodes an efetch XML document. Records without a PMID or
// title are skipped and counted.
func ParseArticles(r io.Reader) ([]types.Study, int, error) {
	var set articleSet
	if err := xml.NewDecoder(r).Decode(&set); err != nil {
		return nil, 0, err
	}

	var studies []types.Study
	skipped := 0
	for _, pa := range set.Articles {
		s, ok := toStudy(pa)
		if !ok {
			skipped++
			continue
		}
		studies = append(studies, s)
	}
	return studies, skipped, nil
}

func toStudy(pa pubmedArticle) (types.Study, bool) {
	c := pa.Citation
	a := c.Article
	id := strings.TrimSpace(c.PMID)
	title := a.Title.text()
	if id == "" || title == "" {
		return types.Study{}, false
	}

	sections := make([]abstractSection, 0, len(a.Abstract))
	for _, sec := range a.Abstract {
		sections = append(sections, abstractSection{label: sec.Label, text: sec.text()})
	}
	abstract := formatAbstract(sections)

	var authors []string
	for i, au := range a.Authors {
		if i == maxAuthors {
			authors = append(authors, "et al.")
			break
		}
		switch {
		case au.LastName != "":
			authors = append(authors, strings.TrimSpace(au.LastName+" "+au.Initials))
		case au.Collective != "":
			authors = append(authors, au.Collective)
		}
	}

	venue := strings.TrimSpace(a.Journal.Title)
	if venue == "" {
		venue = "Unknown Journal"
	}

	return types.Study{
		ID:         id,
		Title:      title,
		Authors:    authors,
		Venue:      venue,
		Year:       parseYear(a.Journal.PubDate.Year, a.Journal.PubDate.MedlineDate),
		Type:       ClassifyStudy(a.PublicationTypes, title, abstract),
		SampleSize: ExtractSampleSize(abstract),
		Abstract:   abstract,
		URL:        fmt.Sprintf(articleURL, id),
	}, true
}

type abstractSection struct {
	label string
	text  string
}

// findingLabels are the structured-abstract sections that carry results.
var findingLabels = map[string]bool{
	"RESULTS":     true,
	"CONCLUSIONS": true,
	"CONCLUSION":  true,
	"FINDINGS":    true,
}

// formatAbstract keeps only the results and conclusions of a structured
// abstract. Unstructured abstracts, and structured ones with no matching
// section, are returned whole.
func formatAbstract(sections []abstractSection) string {
	if len(sections) == 0 {
		return ""
	}

	structured := false
	var kept []string
	for _, s := range sections {
		if s.label == "" {
			continue
		}
		structured = true
		if findingLabels[strings.ToUpper(s.label)] {
			kept = append(kept, s.label+": "+s.text)
		}
	}

	if !structured || len(kept) == 0 {
		all := make([]string, 0, len(sections))
		for _, s := range sections {
			all = append(all, s.text)
		}
		return strings.Join(all, " ")
	}
	return strings.Join(kept, " ")
}

var yearPattern = regexp.MustCompile(`\b(1[89]\d\d|20\d\d)\b`)

func parseYear(year, medlineDate string) int {
	if y, err := strconv.Atoi(strings.TrimSpace(year)); err == nil {
		return y
	}
	if m := yearPattern.FindString(medlineDate); m != "" {
		y, _ := strconv.Atoi(m)
		return y
	}
	return 0
}

// publicationTypes maps PubMed publication types to study types, strongest first.
var publicationTypes = []struct {
	name string
	typ  types.StudyType
}{
	{"Meta-Analysis", types.StudyMetaAnalysis},
	{"Systematic Review", types.StudySystematicReview},
	{"Randomized Controlled Trial", types.StudyRCT},
	{"Observational Study", types.StudyObservational},
	{"Review", types.StudyReview},
}

var textTypes = []struct {
	re  *regexp.Regexp
	typ types.StudyType
}{
	{regexp.MustCompile(`meta-analys[ie]s|meta analys[ie]s`), types.StudyMetaAnalysis},
	{regexp.MustCompile(`systematic review`), types.StudySystematicReview},
	{regexp.MustCompile(`randomi[sz]ed control(led)? trial|\brct\b|randomi[sz]ed`), types.StudyRCT},
	{regexp.MustCompile(`cohort|prospective study|longitudinal`), types.StudyCohort},
	{regexp.MustCompile(`case-control|case control`), types.StudyCaseControl},
	{regexp.MustCompile(`\breview\b`), types.StudyReview},
}

// ClassifyStudy infers the study design. PubMed publication types take
// precedence; otherwise the title and abstract are searched for design
// keywords. Records with no signal are observational.
func ClassifyStudy(pubTypes []string, title, abstract string) types.StudyType {
	for _, pt := range publicationTypes {
		for _, got := range pubTypes {
			if strings.EqualFold(strings.TrimSpace(got), pt.name) {
				return pt.typ
			}
		}
	}

	combined := strings.ToLower(title + " " + abstract)
	for _, tt := range textTypes {
		if tt.re.MatchString(combined) {
			return tt.typ
		}
	}
	return types.StudyObservational
}

var sampleSizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bn\s*=\s*(\d{1,3}(?:,\d{3})+|\d+)`),
	regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+|\d+)\s+(?:participants|subjects|patients|adults|individuals|women|men)`),
}

// ExtractSampleSize returns the first sample size stated in text, or 0.
func ExtractSampleSize(text string) int {
	for _, re := range sampleSizePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err == nil {
			return n
		}
	}
	return 0
}
