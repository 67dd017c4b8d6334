package semantic

import (
	"regexp"
	"strings"
	"time"

	"github.com/worklens/backend/internal/evidence"
)

// Pair is one candidate evidence pair for semantic analysis.
type Pair struct {
	A *evidence.Item
	B *evidence.Item
}

func (p Pair) Key() string {
	if p.A.ID < p.B.ID {
		return p.A.ID + "|" + p.B.ID
	}
	return p.B.ID + "|" + p.A.ID
}

var issueKeyToken = regexp.MustCompile(`\b([A-Z]{2,10}-\d+)\b`)

var prefilterStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"this": true, "that": true, "have": true, "been": true, "were": true,
	"will": true, "would": true, "could": true, "should": true,
}

var prefilterAuthorFields = []string{"author", "assignee", "reporter", "created_by", "username"}

// Prefilter selects pairs cheap heuristics say are worth paid analysis. A
// pair passes when any signal fires: shared author, shared issue key,
// temporal proximity, or meaningful keyword overlap.
type Prefilter struct {
	ProximityWindow time.Duration
	OverlapRatio    float64
}

func NewPrefilter() *Prefilter {
	return &Prefilter{
		ProximityWindow: 24 * time.Hour,
		OverlapRatio:    0.2,
	}
}

// Candidates returns pairs passing the filter, excluding pairs already
// covered by a known relationship.
func (f *Prefilter) Candidates(items []*evidence.Item, existing []*evidence.Relationship) []Pair {
	covered := map[string]bool{}
	for _, rel := range existing {
		covered[rel.PairKey()] = true
	}

	var pairs []Pair
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			pair := Pair{A: items[i], B: items[j]}
			if covered[pair.Key()] {
				continue
			}
			if f.likelyRelated(pair) {
				pairs = append(pairs, pair)
			}
		}
	}
	return pairs
}

func (f *Prefilter) likelyRelated(pair Pair) bool {
	if sharedAuthorAcrossPlatforms(pair) {
		return true
	}
	if sharedIssueKey(pair.A, pair.B) {
		return true
	}
	if f.temporallyClose(pair.A, pair.B) {
		return true
	}
	return f.keywordOverlap(pair.A, pair.B)
}

func sharedAuthorAcrossPlatforms(pair Pair) bool {
	if pair.A.Platform == pair.B.Platform {
		return false
	}
	a := itemAuthor(pair.A)
	return a != "" && a == itemAuthor(pair.B)
}

func itemAuthor(item *evidence.Item) string {
	for _, field := range prefilterAuthorFields {
		if v := item.MetaString(field); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

func sharedIssueKey(a, b *evidence.Item) bool {
	aKeys := issueKeyToken.FindAllString(itemText(a), -1)
	if len(aKeys) == 0 {
		return false
	}
	bText := itemText(b)
	for _, key := range aKeys {
		if strings.Contains(bText, key) {
			return true
		}
	}
	return false
}

func (f *Prefilter) temporallyClose(a, b *evidence.Item) bool {
	diff := a.EvidenceDate.Sub(b.EvidenceDate)
	if diff < 0 {
		diff = -diff
	}
	return diff <= f.ProximityWindow
}

func (f *Prefilter) keywordOverlap(a, b *evidence.Item) bool {
	aWords := significantWords(itemText(a))
	bWords := significantWords(itemText(b))
	if len(aWords) == 0 || len(bWords) == 0 {
		return false
	}

	smaller := len(aWords)
	if len(bWords) < smaller {
		smaller = len(bWords)
	}

	shared := 0
	for word := range aWords {
		if bWords[word] {
			shared++
		}
	}
	return float64(shared) >= float64(smaller)*f.OverlapRatio
}

func significantWords(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) >= 4 && !prefilterStopWords[w] {
			words[w] = true
		}
	}
	return words
}

func itemText(item *evidence.Item) string {
	return item.Title + " " + item.Description
}
