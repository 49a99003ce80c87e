package bot

import (
	"regexp"
	"strings"

	"auticare/types"
)

var (
	greetingRe      = regexp.MustCompile(`\b(hi|hello|hey|good morning|good afternoon|good evening)\b`)
	shortGreetingRe = regexp.MustCompile(`\b(hi|hello|hey)\b`)

	patientIndicators = []*regexp.Regexp{
		regexp.MustCompile(`\b\d+\b`),
		regexp.MustCompile(`\b(patient|name|id)\b`),
	}
	patientTerms = []string{"john", "pamela", "sarah", "mike", "lisa", "adhd", "anxiety", "depression"}
)

const maxGreetingWords = 3

// Classify routes a query. Greeting wins over patient indicators, and
// anything else is general knowledge.
func Classify(query string) types.ClassifiedQuery {
	q := strings.ToLower(strings.TrimSpace(query))
	c := types.ClassifiedQuery{Text: query, Category: types.CategoryGeneralKnowledge}

	if greetingRe.MatchString(q) && len(strings.Fields(q)) <= maxGreetingWords {
		c.Category = types.CategoryGreeting
		return c
	}
	for _, re := range patientIndicators {
		if re.MatchString(q) {
			c.Category = types.CategoryPatientRelated
			return c
		}
	}
	for _, term := range patientTerms {
		if strings.Contains(q, term) {
			c.Category = types.CategoryPatientRelated
			return c
		}
	}
	return c
}

// isShortGreeting is the lighter check used by the direct pipeline.
func isShortGreeting(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return shortGreetingRe.MatchString(q) && len(strings.Fields(q)) <= maxGreetingWords
}
