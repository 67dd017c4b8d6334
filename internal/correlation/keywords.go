package correlation

import (
	"regexp"
	"sort"
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// jiraKeyPattern matches JIRA-style issue keys (PROJ-123, FLIGHTS-4567).
var jiraKeyPattern = regexp.MustCompile(`\b([A-Z]{2,10}-\d+)\b`)

var wordToken = regexp.MustCompile(`^[a-z0-9_]+$`)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "have": true, "has": true, "had": true, "do": true,
	"does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true,
}

// extractKeywords tokenizes free text and returns the meaningful words:
// lowercased, longer than three characters, and not a stop word.
func extractKeywords(text string) map[string]bool {
	keywords := map[string]bool{}
	for _, word := range tokenize(text) {
		if len(word) > 3 && !stopWords[word] {
			keywords[word] = true
		}
	}
	return keywords
}

func tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		// Tokenizer failure degrades to whitespace splitting.
		return strings.Fields(strings.ToLower(text))
	}

	var words []string
	for _, tok := range doc.Tokens() {
		word := strings.ToLower(tok.Text)
		if wordToken.MatchString(word) {
			words = append(words, word)
		}
	}
	return words
}

// jaccardSimilarity is |intersection| / |union| over two keyword sets.
func jaccardSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for word := range a {
		if b[word] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func commonKeywords(a, b map[string]bool) []string {
	var common []string
	for word := range a {
		if b[word] {
			common = append(common, word)
		}
	}
	sort.Strings(common)
	return common
}

func extractJiraKeys(text string) []string {
	var keys []string
	for _, m := range jiraKeyPattern.FindAllStringSubmatch(text, -1) {
		keys = append(keys, m[1])
	}
	return keys
}
