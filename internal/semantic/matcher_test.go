package semantic

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/worklens/backend/internal/evidence"
)

type fakeEmbedder struct {
	vectors [][]float32
	err     error
	calls   int
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for i := range texts {
		out = append(out, e.vectors[i%len(e.vectors)])
	}
	return out, nil
}

type fakeAdjudicator struct {
	verdict *Verdict
	err     error
	calls   int
}

func (a *fakeAdjudicator) Adjudicate(context.Context, PairContext) (*Verdict, error) {
	a.calls++
	return a.verdict, a.err
}

type fakeFallback struct {
	calls int
}

func (f *fakeFallback) Correlate(a, b *evidence.Item) (*evidence.Relationship, bool) {
	f.calls++
	return evidence.NewRelationship(a.ID, b.ID,
		evidence.RelRelatedTo, 0.4, evidence.MethodContentAnalysis), true
}

// matcherPair builds a cross-platform pair close enough in time to pass the
// prefilter and qualify as an LLM edge case.
func matcherPair(t *testing.T) (*evidence.Item, *evidence.Item) {
	t.Helper()
	a := semItem(t, evidence.PlatformGitLab, "Rework pool sizing", "Tunes the connection pool heuristics", prefilterBase)
	b := semItem(t, evidence.PlatformJira, "Intermittent drops", "Clients lose their session under load", prefilterBase.Add(2*time.Hour))
	return a, b
}

func TestMatchEmbeddingTierAcceptsSimilarPair(t *testing.T) {
	a, b := matcherPair(t)
	embedder := &fakeEmbedder{vectors: [][]float32{{1, 0, 0}}}
	ledger := newTestLedger(t, NewMemoryLedgerStore(), 15.0)

	matcher := NewMatcher(embedder, &fakeAdjudicator{}, ledger, nil)
	rels := matcher.Match(context.Background(), []*evidence.Item{a, b}, nil)

	if len(rels) != 1 {
		t.Fatalf("Match() returned %d relationships, want 1", len(rels))
	}
	rel := rels[0]
	if rel.Type != evidence.RelSemanticSimilarity {
		t.Errorf("Type = %q, want semantic_similarity", rel.Type)
	}
	if rel.DetectionMethod != evidence.MethodLLMSemantic {
		t.Errorf("DetectionMethod = %q, want llm_semantic", rel.DetectionMethod)
	}
	if rel.ConfidenceScore < 0.999 {
		t.Errorf("ConfidenceScore = %v, want ~1 for identical vectors", rel.ConfidenceScore)
	}
	if rel.Metadata["correlation_tier"] != "embedding" {
		t.Errorf("correlation_tier = %v", rel.Metadata["correlation_tier"])
	}

	wantSpend := ledger.EmbeddingCost(16)
	if got := ledger.Usage().CurrentSpend; math.Abs(got-wantSpend) > 1e-9 {
		t.Errorf("CurrentSpend = %v, want %v for sixteen tokens", got, wantSpend)
	}
}

func TestMatchDissimilarPairGoesToAdjudication(t *testing.T) {
	a, b := matcherPair(t)
	embedder := &fakeEmbedder{vectors: [][]float32{{1, 0, 0}, {0, 1, 0}}}
	adjudicator := &fakeAdjudicator{verdict: &Verdict{
		IsRelated:        true,
		Confidence:       0.8,
		RelationshipType: "causal",
		Reasoning:        "The pool rework addresses the reported drops",
	}}
	ledger := newTestLedger(t, NewMemoryLedgerStore(), 15.0)

	matcher := NewMatcher(embedder, adjudicator, ledger, nil)
	rels := matcher.Match(context.Background(), []*evidence.Item{a, b}, nil)

	if adjudicator.calls != 1 {
		t.Fatalf("adjudicator called %d times, want 1", adjudicator.calls)
	}
	if len(rels) != 1 {
		t.Fatalf("Match() returned %d relationships, want 1", len(rels))
	}
	rel := rels[0]
	if rel.ConfidenceScore != 0.8 {
		t.Errorf("ConfidenceScore = %v, want the verdict's 0.8", rel.ConfidenceScore)
	}
	if rel.Metadata["correlation_tier"] != "llm_edge_case" {
		t.Errorf("correlation_tier = %v", rel.Metadata["correlation_tier"])
	}
	if rel.Metadata["llm_relationship_type"] != "causal" {
		t.Errorf("llm_relationship_type = %v", rel.Metadata["llm_relationship_type"])
	}
	if rel.EvidenceSummary != "The pool rework addresses the reported drops" {
		t.Errorf("EvidenceSummary = %q", rel.EvidenceSummary)
	}

	wantSpend := ledger.EmbeddingCost(16) + ledger.LLMCallCost()
	if got := ledger.Usage().CurrentSpend; math.Abs(got-wantSpend) > 1e-9 {
		t.Errorf("CurrentSpend = %v, want %v", got, wantSpend)
	}
}

func TestMatchRejectsLowConfidenceVerdict(t *testing.T) {
	a, b := matcherPair(t)
	embedder := &fakeEmbedder{vectors: [][]float32{{1, 0, 0}, {0, 1, 0}}}
	adjudicator := &fakeAdjudicator{verdict: &Verdict{IsRelated: true, Confidence: 0.5}}
	ledger := newTestLedger(t, NewMemoryLedgerStore(), 15.0)

	matcher := NewMatcher(embedder, adjudicator, ledger, nil)
	rels := matcher.Match(context.Background(), []*evidence.Item{a, b}, nil)

	if len(rels) != 0 {
		t.Fatalf("Match() returned %d relationships, want 0 below the confidence floor", len(rels))
	}

	// The call is billed even when the verdict is rejected.
	wantSpend := ledger.EmbeddingCost(16) + ledger.LLMCallCost()
	if got := ledger.Usage().CurrentSpend; math.Abs(got-wantSpend) > 1e-9 {
		t.Errorf("CurrentSpend = %v, want %v", got, wantSpend)
	}
}

func TestMatchExhaustedBudgetUsesFallback(t *testing.T) {
	a, b := matcherPair(t)
	embedder := &fakeEmbedder{vectors: [][]float32{{1, 0, 0}}}
	adjudicator := &fakeAdjudicator{}
	fallback := &fakeFallback{}
	ledger := newTestLedger(t, NewMemoryLedgerStore(), 15.0)
	ledger.RecordUsage(context.Background(), 15.0)

	matcher := NewMatcher(embedder, adjudicator, ledger, fallback)
	rels := matcher.Match(context.Background(), []*evidence.Item{a, b}, nil)

	if embedder.calls != 0 {
		t.Error("embedder should not be called when the budget is exhausted")
	}
	if adjudicator.calls != 0 {
		t.Error("adjudicator should not be called when the budget is exhausted")
	}
	if fallback.calls != 1 {
		t.Errorf("fallback called %d times, want 1", fallback.calls)
	}
	if len(rels) != 1 {
		t.Fatalf("Match() returned %d relationships, want the fallback result", len(rels))
	}
	if rels[0].Metadata["correlation_tier"] != "rule_based_fallback" {
		t.Errorf("correlation_tier = %v", rels[0].Metadata["correlation_tier"])
	}
}

func TestMatchEmbedFailureUsesFallback(t *testing.T) {
	a, b := matcherPair(t)
	embedder := &fakeEmbedder{err: errors.New("provider unavailable")}
	fallback := &fakeFallback{}
	ledger := newTestLedger(t, NewMemoryLedgerStore(), 15.0)

	matcher := NewMatcher(embedder, &fakeAdjudicator{}, ledger, fallback)
	rels := matcher.Match(context.Background(), []*evidence.Item{a, b}, nil)

	if fallback.calls != 1 {
		t.Errorf("fallback called %d times, want 1", fallback.calls)
	}
	if len(rels) != 1 {
		t.Fatalf("Match() returned %d relationships, want 1", len(rels))
	}
	if got := ledger.Usage().CurrentSpend; got != 0 {
		t.Errorf("CurrentSpend = %v, failed calls must not be billed", got)
	}
}

func TestMatchNoCandidates(t *testing.T) {
	ledger := newTestLedger(t, NewMemoryLedgerStore(), 15.0)
	matcher := NewMatcher(&fakeEmbedder{}, &fakeAdjudicator{}, ledger, nil)

	if rels := matcher.Match(context.Background(), nil, nil); rels != nil {
		t.Errorf("Match() = %v on empty input, want nil", rels)
	}
}

func TestParseVerdictStripsCodeFences(t *testing.T) {
	content := "```json\n{\"is_related\": true, \"confidence\": 0.9, \"relationship_type\": \"solves\", \"reasoning\": \"same work\"}\n```"

	verdict, err := parseVerdict(content)
	if err != nil {
		t.Fatalf("parseVerdict() error: %v", err)
	}
	if !verdict.IsRelated || verdict.Confidence != 0.9 || verdict.RelationshipType != "solves" {
		t.Errorf("parseVerdict() = %+v", verdict)
	}
}

func TestParseVerdictRejectsGarbage(t *testing.T) {
	if _, err := parseVerdict("not json at all"); err == nil {
		t.Error("parseVerdict() accepted malformed content")
	}
}
