package semantic

import (
	"testing"
	"time"

	"github.com/worklens/backend/internal/evidence"
)

var prefilterBase = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

func semItem(t *testing.T, platform evidence.Platform, title, description string, date time.Time) *evidence.Item {
	t.Helper()
	source := "jira_ticket"
	if platform == evidence.PlatformGitLab {
		source = "gitlab_commit"
	}
	return evidence.NewItem("dev-1", platform, source,
		evidence.CategoryTechnical, title, description, date)
}

func TestCandidatesSharedAuthor(t *testing.T) {
	a := semItem(t, evidence.PlatformGitLab, "Importer batching", "Splits the importer into batches", prefilterBase)
	a.Metadata["author"] = "Priya"
	b := semItem(t, evidence.PlatformJira, "Slow nightly export", "Nightly export exceeds its window", prefilterBase.AddDate(0, 0, 30))
	b.Metadata["author"] = "priya"

	pairs := NewPrefilter().Candidates([]*evidence.Item{a, b}, nil)
	if len(pairs) != 1 {
		t.Fatalf("Candidates() returned %d pairs, want 1 for a shared author", len(pairs))
	}
}

func TestCandidatesSharedAuthorSamePlatformDoesNotCount(t *testing.T) {
	a := semItem(t, evidence.PlatformGitLab, "Importer batching", "Splits the importer into batches", prefilterBase)
	a.Metadata["author"] = "priya"
	b := semItem(t, evidence.PlatformGitLab, "Slow nightly export", "Nightly export exceeds its window", prefilterBase.AddDate(0, 0, 30))
	b.Metadata["author"] = "priya"

	pairs := NewPrefilter().Candidates([]*evidence.Item{a, b}, nil)
	if len(pairs) != 0 {
		t.Fatalf("Candidates() returned %d pairs, want 0 within one platform", len(pairs))
	}
}

func TestCandidatesSharedIssueKey(t *testing.T) {
	a := semItem(t, evidence.PlatformGitLab, "Deploy pipeline speedup CD-481", "Caches the builder image", prefilterBase)
	b := semItem(t, evidence.PlatformJira, "CD-481 Slow deploys", "Every deploy rebuilds everything", prefilterBase.AddDate(0, 0, 30))

	pairs := NewPrefilter().Candidates([]*evidence.Item{a, b}, nil)
	if len(pairs) != 1 {
		t.Fatalf("Candidates() returned %d pairs, want 1 for a shared issue key", len(pairs))
	}
}

func TestCandidatesTemporalProximity(t *testing.T) {
	a := semItem(t, evidence.PlatformGitLab, "Importer batching", "Splits the importer into batches", prefilterBase)
	b := semItem(t, evidence.PlatformJira, "Slow nightly export", "Nightly export exceeds its window", prefilterBase.Add(6*time.Hour))

	pairs := NewPrefilter().Candidates([]*evidence.Item{a, b}, nil)
	if len(pairs) != 1 {
		t.Fatalf("Candidates() returned %d pairs, want 1 for items six hours apart", len(pairs))
	}
}

func TestCandidatesKeywordOverlap(t *testing.T) {
	a := semItem(t, evidence.PlatformGitLab, "Harden checkout payment flow", "Validates checkout payment amounts", prefilterBase)
	b := semItem(t, evidence.PlatformJira, "Checkout payment rejected", "Checkout payment declines for saved cards", prefilterBase.AddDate(0, 0, 30))

	pairs := NewPrefilter().Candidates([]*evidence.Item{a, b}, nil)
	if len(pairs) != 1 {
		t.Fatalf("Candidates() returned %d pairs, want 1 for overlapping vocabulary", len(pairs))
	}
}

func TestCandidatesRejectsUnrelated(t *testing.T) {
	a := semItem(t, evidence.PlatformGitLab, "Importer batching", "Splits large inputs into chunks", prefilterBase)
	b := semItem(t, evidence.PlatformJira, "Onboarding docs rewrite", "Freshens setup guide screenshots", prefilterBase.AddDate(0, 0, 30))

	pairs := NewPrefilter().Candidates([]*evidence.Item{a, b}, nil)
	if len(pairs) != 0 {
		t.Fatalf("Candidates() returned %d pairs, want 0 for unrelated items", len(pairs))
	}
}

func TestCandidatesExcludesCoveredPairs(t *testing.T) {
	a := semItem(t, evidence.PlatformGitLab, "Importer batching", "Splits the importer into batches", prefilterBase)
	b := semItem(t, evidence.PlatformJira, "Slow nightly export", "Nightly export exceeds its window", prefilterBase.Add(time.Hour))

	existing := []*evidence.Relationship{
		evidence.NewRelationship(b.ID, a.ID, evidence.RelRelatedTo, 0.5, evidence.MethodContentAnalysis),
	}

	pairs := NewPrefilter().Candidates([]*evidence.Item{a, b}, existing)
	if len(pairs) != 0 {
		t.Fatalf("Candidates() returned %d pairs, want 0 when the pair is already covered", len(pairs))
	}
}

func TestPairKeyOrderIndependent(t *testing.T) {
	a := semItem(t, evidence.PlatformGitLab, "one", "first item text", prefilterBase)
	b := semItem(t, evidence.PlatformJira, "two", "second item text", prefilterBase)

	if (Pair{A: a, B: b}).Key() != (Pair{A: b, B: a}).Key() {
		t.Error("Key() should not depend on pair order")
	}
}
