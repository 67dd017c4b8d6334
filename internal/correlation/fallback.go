package correlation

import (
	"fmt"

	"github.com/worklens/backend/internal/evidence"
)

// PairFallback correlates a single evidence pair with the zero-cost content
// heuristics. The semantic tier falls back to it when paid analysis is over
// budget or unavailable.
type PairFallback struct {
	cfg    Thresholds
	scorer *Scorer
}

func NewPairFallback(cfg Thresholds) *PairFallback {
	return &PairFallback{cfg: cfg, scorer: NewScorer(cfg)}
}

func (f *PairFallback) Correlate(a, b *evidence.Item) (*evidence.Relationship, bool) {
	aKeywords := extractKeywords(a.Title + " " + a.Description)
	bKeywords := extractKeywords(b.Title + " " + b.Description)

	similarity := jaccardSimilarity(aKeywords, bKeywords)
	if similarity <= f.cfg.ContentSimilarityMin {
		return nil, false
	}

	rel := evidence.NewRelationship(
		a.ID,
		b.ID,
		evidence.RelRelatedTo,
		similarity*f.cfg.ContentConfidenceScale,
		evidence.MethodContentAnalysis,
	)
	rel.EvidenceSummary = fmt.Sprintf("Content similarity score: %.2f", similarity)
	rel.Metadata["similarity_score"] = similarity
	rel.Metadata["common_keywords"] = commonKeywords(aKeywords, bKeywords)

	rel.ConfidenceScore = f.scorer.Score(rel, a, b)
	if !f.scorer.Validate(rel, a, b) {
		return nil, false
	}
	return rel, true
}
