package correlation

import (
	"math"
	"strings"

	"github.com/worklens/backend/internal/evidence"
)

var baseConfidenceByMethod = map[evidence.DetectionMethod]float64{
	evidence.MethodIssueKey:          0.9,
	evidence.MethodBranchName:        0.7,
	evidence.MethodContentAnalysis:   0.4,
	evidence.MethodTemporalProximity: 0.3,
	evidence.MethodAuthorCorrelation: 0.5,
	evidence.MethodManual:            1.0,
}

var typeBonusByRelationship = map[evidence.RelationshipType]float64{
	evidence.RelSolves:     0.1,
	evidence.RelReferences: 0.05,
	evidence.RelRelatedTo:  0.0,
	evidence.RelDuplicate:  0.1,
	evidence.RelSequential: 0.05,
	evidence.RelCausal:     0.1,
}

// authorFields is the metadata lookup order for resolving who produced an
// evidence item. Different collectors populate different fields.
var authorFields = []string{"author", "assignee", "reporter", "created_by", "username"}

// Scorer recomputes relationship confidence from the detection method base
// plus temporal, author, content, and relationship-type signals.
type Scorer struct {
	cfg Thresholds
}

func NewScorer(cfg Thresholds) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score returns the combined confidence for a relationship between two items,
// clamped to [0, 1].
func (s *Scorer) Score(rel *evidence.Relationship, primary, related *evidence.Item) float64 {
	base, ok := baseConfidenceByMethod[rel.DetectionMethod]
	if !ok {
		base = 0.3
	}

	confidence := base
	confidence += s.temporalBonus(primary, related)
	confidence += s.authorBonus(primary, related)
	confidence += s.contentBonus(rel, primary, related)
	confidence += typeBonusByRelationship[rel.Type]

	return clampUnit(confidence)
}

// temporalBonus rewards activity close in time. Same-day pairs get the full
// bonus, decaying linearly to zero over the window.
func (s *Scorer) temporalBonus(primary, related *evidence.Item) float64 {
	diff := primary.EvidenceDate.Sub(related.EvidenceDate)
	days := int(math.Abs(diff.Hours()) / 24)

	window := s.cfg.TemporalBonusWindowDays
	switch {
	case days == 0:
		return 0.1
	case days <= window:
		return 0.1 * (1.0 - float64(days)/float64(window))
	default:
		return 0.0
	}
}

func (s *Scorer) authorBonus(primary, related *evidence.Item) float64 {
	primaryAuthor := resolveAuthor(primary)
	relatedAuthor := resolveAuthor(related)
	if primaryAuthor != "" && primaryAuthor == relatedAuthor {
		return 0.1
	}
	return 0.0
}

func resolveAuthor(item *evidence.Item) string {
	for _, field := range authorFields {
		if v := item.MetaString(field); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

// contentBonus reuses the detector's similarity score when one was recorded,
// otherwise falls back to a cheap word-overlap measure.
func (s *Scorer) contentBonus(rel *evidence.Relationship, primary, related *evidence.Item) float64 {
	if rel.DetectionMethod == evidence.MethodContentAnalysis {
		if sim, ok := rel.Metadata["similarity_score"].(float64); ok {
			return sim * 0.2
		}
		return 0.0
	}

	primaryWords := wordSet(primary.Title + " " + primary.Description)
	relatedWords := wordSet(related.Title + " " + related.Description)
	if len(primaryWords) == 0 || len(relatedWords) == 0 {
		return 0.0
	}

	intersection := 0
	union := len(relatedWords)
	for word := range primaryWords {
		if relatedWords[word] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union) * 0.1
}

func wordSet(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[w] = true
	}
	return words
}

// Validate rejects relationships that cannot be trusted: self-references,
// low-confidence same-platform links that are not duplicates, and anything
// below the noise floor.
func (s *Scorer) Validate(rel *evidence.Relationship, primary, related *evidence.Item) bool {
	if primary.ID == related.ID {
		return false
	}
	if primary.Platform == related.Platform &&
		rel.ConfidenceScore < 0.7 &&
		rel.Type != evidence.RelDuplicate {
		return false
	}
	return rel.ConfidenceScore >= 0.1
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
