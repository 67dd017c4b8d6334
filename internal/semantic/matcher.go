package semantic

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/worklens/backend/internal/evidence"
	"github.com/worklens/backend/internal/metrics"
	"github.com/worklens/backend/pkg/logger"
)

const (
	embeddingSimilarityMin = 0.7
	llmConfidenceMin       = 0.6
	embeddingBatchPairs    = 20
	llmEdgeCaseCap         = 10
)

// Embedder produces one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// PairContext is the evidence handed to the adjudicator for one pair.
type PairContext struct {
	A *evidence.Item
	B *evidence.Item
}

// Verdict is the adjudicator's judgement of one pair.
type Verdict struct {
	IsRelated        bool    `json:"is_related"`
	Confidence       float64 `json:"confidence"`
	RelationshipType string  `json:"relationship_type"`
	Reasoning        string  `json:"reasoning"`
}

// Adjudicator judges ambiguous pairs the embedding tier could not settle.
type Adjudicator interface {
	Adjudicate(ctx context.Context, pair PairContext) (*Verdict, error)
}

// PairCorrelator is the zero-cost fallback used when the budget rules out
// paid analysis for a pair.
type PairCorrelator interface {
	Correlate(a, b *evidence.Item) (*evidence.Relationship, bool)
}

var technicalVocabulary = []string{"api", "database", "service", "component", "module", "function"}

// Matcher runs the tiered semantic pipeline: free prefilter, paid embedding
// similarity, paid LLM adjudication for the hardest cases. Every paid call
// is gated by the cost ledger; a blocked tier degrades to the rule-based
// fallback rather than failing the run.
type Matcher struct {
	embedder    Embedder
	adjudicator Adjudicator
	ledger      *CostLedger
	prefilter   *Prefilter
	fallback    PairCorrelator
}

func NewMatcher(embedder Embedder, adjudicator Adjudicator, ledger *CostLedger, fallback PairCorrelator) *Matcher {
	return &Matcher{
		embedder:    embedder,
		adjudicator: adjudicator,
		ledger:      ledger,
		prefilter:   NewPrefilter(),
		fallback:    fallback,
	}
}

// Match finds relationships among pairs that rule-based detection missed.
// It never returns an error; provider failures degrade to the fallback or
// skip the pair.
func (m *Matcher) Match(ctx context.Context, items []*evidence.Item, existing []*evidence.Relationship) []*evidence.Relationship {
	candidates := m.prefilter.Candidates(items, existing)
	if len(candidates) == 0 {
		return nil
	}

	logger.Debug("Semantic matching candidates selected",
		zap.Int("items", len(items)),
		zap.Int("candidates", len(candidates)),
	)

	found := m.embeddingTier(ctx, candidates)

	matched := map[string]bool{}
	for _, rel := range found {
		matched[rel.PairKey()] = true
	}

	var unresolved []Pair
	for _, pair := range candidates {
		if !matched[pair.Key()] {
			unresolved = append(unresolved, pair)
		}
	}

	found = append(found, m.llmTier(ctx, unresolved)...)
	return found
}

// embeddingTier embeds candidate texts in batches and accepts pairs whose
// cosine similarity clears the threshold. When the budget or the provider
// rules a batch out, the fallback correlator handles those pairs instead.
func (m *Matcher) embeddingTier(ctx context.Context, candidates []Pair) []*evidence.Relationship {
	var relationships []*evidence.Relationship

	for start := 0; start < len(candidates); start += embeddingBatchPairs {
		end := start + embeddingBatchPairs
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		texts := make([]string, 0, len(batch)*2)
		tokens := 0
		for _, pair := range batch {
			aText, bText := itemText(pair.A), itemText(pair.B)
			texts = append(texts, aText, bText)
			tokens += len(strings.Fields(aText)) + len(strings.Fields(bText))
		}

		if !m.ledger.CanAffordEmbedding(tokens) {
			metrics.SemanticBudgetExhausted.Inc()
			logger.Warn("Embedding budget exhausted, using rule-based fallback",
				zap.Int("pairs", len(batch)),
			)
			relationships = append(relationships, m.fallbackTier(batch)...)
			continue
		}

		vectors, err := m.embedder.Embed(ctx, texts)
		if err != nil {
			logger.Warn("Embedding request failed, using rule-based fallback",
				zap.Error(err),
				zap.Int("pairs", len(batch)),
			)
			relationships = append(relationships, m.fallbackTier(batch)...)
			continue
		}

		m.ledger.RecordUsage(ctx, m.ledger.EmbeddingCost(tokens))
		metrics.SemanticSpend.WithLabelValues("embedding").Add(m.ledger.EmbeddingCost(tokens))
		metrics.SemanticPairsProcessed.WithLabelValues("embedding").Add(float64(len(batch)))

		for i, pair := range batch {
			if 2*i+1 >= len(vectors) {
				break
			}
			similarity := cosineSimilarity(vectors[2*i], vectors[2*i+1])
			if similarity < embeddingSimilarityMin {
				continue
			}

			rel := evidence.NewRelationship(
				pair.A.ID,
				pair.B.ID,
				evidence.RelSemanticSimilarity,
				math.Min(similarity, 1.0),
				evidence.MethodLLMSemantic,
			)
			rel.Metadata["embedding_similarity"] = similarity
			rel.Metadata["correlation_tier"] = "embedding"
			relationships = append(relationships, rel)
		}
	}

	return relationships
}

func (m *Matcher) fallbackTier(pairs []Pair) []*evidence.Relationship {
	if m.fallback == nil {
		return nil
	}
	var relationships []*evidence.Relationship
	for _, pair := range pairs {
		if rel, ok := m.fallback.Correlate(pair.A, pair.B); ok {
			rel.Metadata["correlation_tier"] = "rule_based_fallback"
			relationships = append(relationships, rel)
		}
	}
	metrics.SemanticPairsProcessed.WithLabelValues("fallback").Add(float64(len(pairs)))
	return relationships
}

// llmTier adjudicates the hardest unresolved pairs one at a time, stopping
// as soon as the budget runs out. Cost is recorded per call whether or not
// the verdict accepts the pair.
func (m *Matcher) llmTier(ctx context.Context, unresolved []Pair) []*evidence.Relationship {
	if m.adjudicator == nil {
		return nil
	}

	edgeCases := selectEdgeCases(unresolved)
	var relationships []*evidence.Relationship

	for _, pair := range edgeCases {
		if !m.ledger.CanAffordLLMCall() {
			metrics.SemanticBudgetExhausted.Inc()
			logger.Warn("LLM adjudication budget exhausted",
				zap.Int("remaining_pairs", len(edgeCases)-len(relationships)),
			)
			break
		}

		verdict, err := m.adjudicator.Adjudicate(ctx, PairContext{A: pair.A, B: pair.B})
		m.ledger.RecordUsage(ctx, m.ledger.LLMCallCost())
		metrics.SemanticSpend.WithLabelValues("llm").Add(m.ledger.LLMCallCost())
		metrics.SemanticPairsProcessed.WithLabelValues("llm").Inc()

		if err != nil {
			logger.Warn("LLM adjudication failed",
				zap.Error(err),
				zap.String("pair", pair.Key()),
			)
			continue
		}
		if !verdict.IsRelated || verdict.Confidence < llmConfidenceMin {
			continue
		}

		rel := evidence.NewRelationship(
			pair.A.ID,
			pair.B.ID,
			evidence.RelSemanticSimilarity,
			verdict.Confidence,
			evidence.MethodLLMSemantic,
		)
		if verdict.Reasoning != "" {
			rel.EvidenceSummary = verdict.Reasoning
		}
		rel.Metadata["llm_relationship_type"] = verdict.RelationshipType
		rel.Metadata["llm_reasoning"] = verdict.Reasoning
		rel.Metadata["correlation_tier"] = "llm_edge_case"
		relationships = append(relationships, rel)
	}

	return relationships
}

// selectEdgeCases keeps the pairs most likely to hide a real relationship:
// same author, tight cross-platform timing, or shared technical vocabulary.
func selectEdgeCases(unresolved []Pair) []Pair {
	var edgeCases []Pair
	for _, pair := range unresolved {
		if len(edgeCases) >= llmEdgeCaseCap {
			break
		}
		if isEdgeCase(pair) {
			edgeCases = append(edgeCases, pair)
		}
	}
	return edgeCases
}

func isEdgeCase(pair Pair) bool {
	author := itemAuthor(pair.A)
	if author != "" && author == itemAuthor(pair.B) {
		return true
	}

	if pair.A.Platform != pair.B.Platform {
		diff := pair.A.EvidenceDate.Sub(pair.B.EvidenceDate)
		if diff < 0 {
			diff = -diff
		}
		if diff <= 24*time.Hour {
			return true
		}
	}

	aText := strings.ToLower(itemText(pair.A))
	bText := strings.ToLower(itemText(pair.B))
	for _, word := range technicalVocabulary {
		if strings.Contains(aText, word) && strings.Contains(bText, word) {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
