package store

import (
	"fmt"
	"regexp"
	"strings"

	"auticare/types"
)

// Most specific first. The bare number pattern is the last resort.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`id\s*(\d+)`),
	regexp.MustCompile(`patient\s*(\d+)`),
	regexp.MustCompile(`\bid\s*(\d+)`),
	regexp.MustCompile(`(\d+)`),
}

var nonWord = regexp.MustCompile(`[^\w]`)

var nameStopwords = map[string]struct{}{
	"patient": {}, "with": {}, "id": {}, "about": {}, "tell": {}, "me": {},
	"show": {}, "get": {}, "find": {}, "data": {}, "of": {}, "for": {},
	"the": {}, "a": {}, "an": {}, "what": {}, "who": {}, "is": {}, "are": {},
	"condition": {}, "symptoms": {}, "information": {},
}

var Conditions = []string{"autism", "adhd", "anxiety", "depression", "speech delay", "ocd", "bipolar", "asperger"}

// Resolution holds either one record, several records (condition search), or
// nothing.
type Resolution struct {
	Record  *types.Record
	Records []types.Record
	Via     string
}

func (r Resolution) Found() bool {
	return r.Record != nil || len(r.Records) > 0
}

func (r Resolution) Multiple() bool {
	return r.Record == nil && len(r.Records) > 0
}

type Resolver struct {
	store *RecordStore
}

func NewResolver(store *RecordStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve finds the patient a free-text query refers to. Strategies run in
// order and the first hit returns: id patterns, name tokens, the joined name
// phrase, then the condition vocabulary.
func (r *Resolver) Resolve(query string) Resolution {
	if !r.store.Available() {
		return Resolution{}
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Resolution{}
	}

	for _, p := range idPatterns {
		m := p.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		if rec, ok := r.store.LookupByID(m[1]); ok {
			return Resolution{Record: &rec, Via: "id"}
		}
	}

	names := candidateNames(q)
	for _, name := range names {
		if rec, ok := r.store.LookupByName(name); ok {
			return Resolution{Record: &rec, Via: "name"}
		}
	}
	if len(names) > 0 {
		if rec, ok := r.store.LookupByName(strings.Join(names, " ")); ok {
			return Resolution{Record: &rec, Via: "name"}
		}
	}

	for _, c := range Conditions {
		if !strings.Contains(q, c) {
			continue
		}
		if recs := r.store.LookupByCategory(c); len(recs) > 0 {
			return Resolution{Records: recs, Via: "condition:" + c}
		}
	}
	return Resolution{}
}

func candidateNames(q string) []string {
	var out []string
	for _, word := range strings.Fields(q) {
		w := nonWord.ReplaceAllString(word, "")
		if len(w) <= 2 || isDigits(w) {
			continue
		}
		if _, stop := nameStopwords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

const (
	NoPatientFound      = "No patient found for this query."
	recordClosingSingle = "This is all the available information for this patient. Answer the user's question based on this data."
	recordClosingMany   = "Answer the user's question based on this patient information."
)

func FormatRecord(r types.Record) string {
	return fmt.Sprintf(`Complete Patient Information:

Patient ID: %s
Patient Name: %s
Gender: %s
Patient Data: %s
Medical Suggestion: %s

%s`, r.ID, r.Name, r.Gender, r.Notes, r.Suggestion, recordClosingSingle)
}

func FormatRecords(records []types.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d patients. Here is their complete information:\n\n", len(records))
	for i, r := range records {
		fmt.Fprintf(&sb, "Patient %d:\n", i+1)
		fmt.Fprintf(&sb, "ID: %s\n", r.ID)
		fmt.Fprintf(&sb, "Name: %s\n", r.Name)
		fmt.Fprintf(&sb, "Gender: %s\n", r.Gender)
		fmt.Fprintf(&sb, "Patient Data: %s\n", r.Notes)
		fmt.Fprintf(&sb, "Medical Suggestion: %s\n\n", r.Suggestion)
	}
	sb.WriteString(recordClosingMany)
	return sb.String()
}

// Format renders the resolution as prompt context.
func (r Resolution) Format() string {
	switch {
	case r.Record != nil:
		return FormatRecord(*r.Record)
	case len(r.Records) > 0:
		return FormatRecords(r.Records)
	default:
		return NoPatientFound
	}
}

// IndexText is the form a record takes in the records corpus.
func IndexText(r types.Record) string {
	return fmt.Sprintf("Patient ID: %s\nPatient Name: %s\nGender: %s\nPatient Data: %s\nMedical Suggestion: %s",
		r.ID, r.Name, r.Gender, r.Notes, r.Suggestion)
}

func RecordItems(records []types.Record) []types.Item {
	items := make([]types.Item, 0, len(records))
	for _, r := range records {
		items = append(items, types.Item{
			Text:     IndexText(r),
			Metadata: map[string]string{"patient_id": strings.TrimSpace(r.ID), "patient_name": r.Name},
		})
	}
	return items
}
