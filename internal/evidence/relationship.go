package evidence

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RelationshipType string

const (
	RelSolves             RelationshipType = "solves"
	RelReferences         RelationshipType = "references"
	RelRelatedTo          RelationshipType = "related_to"
	RelDuplicate          RelationshipType = "duplicate"
	RelSequential         RelationshipType = "sequential"
	RelCausal             RelationshipType = "causal"
	RelSemanticSimilarity RelationshipType = "semantic_similarity"
)

type DetectionMethod string

const (
	MethodIssueKey          DetectionMethod = "issue_key"
	MethodBranchName        DetectionMethod = "branch_name"
	MethodContentAnalysis   DetectionMethod = "content_analysis"
	MethodTemporalProximity DetectionMethod = "temporal_proximity"
	MethodAuthorCorrelation DetectionMethod = "author_correlation"
	MethodManual            DetectionMethod = "manual"
	MethodLLMSemantic       DetectionMethod = "llm_semantic"
)

// Relationship is a directed claim that one evidence item is connected to
// another. The linker creates it with a placeholder confidence, the scorer
// overwrites the score, and the grouper consumes it as a graph edge.
type Relationship struct {
	ID                string           `json:"id"`
	PrimaryEvidenceID string           `json:"primary_evidence_id"`
	RelatedEvidenceID string           `json:"related_evidence_id"`
	Type              RelationshipType `json:"relationship_type"`
	ConfidenceScore   float64          `json:"confidence_score"`
	DetectionMethod   DetectionMethod  `json:"detection_method"`
	EvidenceSummary   string           `json:"evidence_summary"`
	DetectedAt        time.Time        `json:"detected_at"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
}

func NewRelationship(primaryID, relatedID string, relType RelationshipType, confidence float64, method DetectionMethod) *Relationship {
	return &Relationship{
		ID:                uuid.New().String(),
		PrimaryEvidenceID: primaryID,
		RelatedEvidenceID: relatedID,
		Type:              relType,
		ConfidenceScore:   clamp01(confidence),
		DetectionMethod:   method,
		EvidenceSummary:   fmt.Sprintf("%s relationship detected via %s", relType, method),
		DetectedAt:        time.Now().UTC(),
		Metadata:          map[string]any{},
	}
}

// PairKey returns an order-independent key for the evidence pair, used to
// collapse duplicate detections to the highest-confidence instance.
func (r *Relationship) PairKey() string {
	a, b := r.PrimaryEvidenceID, r.RelatedEvidenceID
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
