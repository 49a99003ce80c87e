package knowledge

import (
	"sort"
	"strings"
)

const (
	UnavailableReply = "I'm currently unable to access my knowledge base. Please try again later."
	NoMatchReply     = "I couldn't find specific details in my local knowledge. Please try rephrasing your question about autism, therapies, symptoms, or support."
	ConsultClosing   = "\n\nFor personalized support, please consult autism specialists or local support organizations."

	LongHeader = "Autism Spectrum Disorder: A Comprehensive Knowledge Base"
	Disclaimer = "Important Disclaimer for Caregivers and Medical Practitioners"
)

var boilerplate = []string{LongHeader, Disclaimer}

var symptomFocus = []string{
	"early sign", "early signs", "signs of autism", "symptom", "symptoms",
	"behaviour", "behavior", "developmental", "milestones", "screening",
}

const (
	maxUnitLen     = 300
	topUnits       = 5
	extractMaxLen  = 900
	scoredMaxLen   = 800
	scoredTopCount = 3
)

// Extractor answers from the document text alone by keyword overlap.
type Extractor struct {
	units []string
}

func NewExtractor(doc *Document) *Extractor {
	if doc.Empty() {
		return &Extractor{}
	}
	var units []string
	for _, u := range strings.Split(doc.Text, ". ") {
		if u = strings.TrimSpace(u); u != "" {
			units = append(units, u)
		}
	}
	return &Extractor{units: units}
}

func (e *Extractor) Available() bool {
	return len(e.units) > 0
}

type scoredUnit struct {
	score int
	text  string
}

// Extract returns the best matching sentences with boilerplate removed and a
// closing pointer to specialist support.
func (e *Extractor) Extract(query string) string {
	if !e.Available() {
		return UnavailableReply
	}

	units := make([]string, 0, len(e.units))
	for _, u := range e.units {
		if isBoilerplate(u) || len([]rune(u)) > maxUnitLen {
			continue
		}
		units = append(units, u)
	}
	if len(units) == 0 {
		units = e.units
	}

	boost := symptomQuery(query)
	hits := score(units, queryTerms(query), func(lower string) int {
		if boost && (strings.Contains(lower, "symptom") || strings.Contains(lower, "sign")) {
			return 2
		}
		return 0
	})
	if len(hits) == 0 {
		return NoMatchReply
	}

	answer := Cut(join(hits), extractMaxLen)
	answer = dropHeader(answer)
	for _, marker := range boilerplate {
		answer = strings.TrimSpace(strings.ReplaceAll(answer, marker, ""))
	}
	return answer + ConsultClosing
}

// Scored is the unfiltered variant used to decide whether the document alone
// answers the query. The score is the sum of the top three unit scores.
func (e *Extractor) Scored(query string) (string, int) {
	if !e.Available() {
		return "", 0
	}
	hits := score(e.units, queryTerms(query), nil)
	if len(hits) == 0 {
		return "", 0
	}
	total := 0
	for i := 0; i < len(hits) && i < scoredTopCount; i++ {
		total += hits[i].score
	}
	return Cut(join(hits), scoredMaxLen), total
}

func score(units, terms []string, bonus func(lower string) int) []scoredUnit {
	var hits []scoredUnit
	for _, u := range units {
		lower := strings.ToLower(u)
		s := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				s++
			}
		}
		if bonus != nil {
			s += bonus(lower)
		}
		if s > 0 {
			hits = append(hits, scoredUnit{score: s, text: u})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	return hits
}

func join(hits []scoredUnit) string {
	n := len(hits)
	if n > topUnits {
		n = topUnits
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = hits[i].text
	}
	return strings.Join(parts, " ")
}

func queryTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(query) {
		if len([]rune(f)) > 3 {
			terms = append(terms, strings.ToLower(f))
		}
	}
	return terms
}

func symptomQuery(query string) bool {
	q := strings.ToLower(query)
	for _, t := range symptomFocus {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

func dropHeader(s string) string {
	if !strings.HasPrefix(s, LongHeader) {
		return s
	}
	return strings.TrimLeft(s[len(LongHeader):], " :\n")
}

// Scrub collapses repeated document headers in generated text and removes
// the boilerplate markers.
func Scrub(s string) string {
	s = strings.TrimSpace(s)
	for strings.Count(s, LongHeader) > 1 {
		first := strings.Index(s, LongHeader)
		second := first + len(LongHeader) + strings.Index(s[first+len(LongHeader):], LongHeader)
		s = s[:second] + s[second+len(LongHeader):]
	}
	s = dropHeader(s)
	for _, marker := range boilerplate {
		s = strings.ReplaceAll(s, marker, "")
	}
	return strings.TrimSpace(s)
}

func isBoilerplate(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range boilerplate {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// Cut shortens s to at most n characters, backing off to the last word
// boundary and appending an ellipsis.
func Cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	head := string(r[:n])
	if i := strings.LastIndex(head, " "); i >= 0 {
		head = head[:i]
	}
	return head + "…"
}
