package correlation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/worklens/backend/internal/evidence"
)

func TestDetectStackFromFiles(t *testing.T) {
	detector := NewTechnologyDetector(DefaultThresholds())

	item := gitlabItem(t, "Update backend", "Adjusts the session handlers")
	item.Metadata["files_changed"] = []string{"src/app.py", "ui/Component.tsx"}

	got := detector.DetectStack([]*evidence.Item{item})
	want := []string{"Python", "React"}
	if !cmp.Equal(got, want) {
		t.Errorf("DetectStack() = %v, want %v", got, want)
	}
}

func TestDetectStackFromTextAndLabels(t *testing.T) {
	detector := NewTechnologyDetector(DefaultThresholds())

	item := jiraItem(t, "Deploy to kubernetes", "Moves the importer onto the cluster")
	item.Metadata["labels"] = []string{"terraform", "infra"}

	got := detector.DetectStack([]*evidence.Item{item})

	found := map[string]bool{}
	for _, tech := range got {
		found[tech] = true
	}
	if !found["Kubernetes"] {
		t.Errorf("DetectStack() = %v, missing Kubernetes", got)
	}
	if !found["Terraform"] {
		t.Errorf("DetectStack() = %v, missing Terraform", got)
	}
}

func TestEnrichOverwritesComplexity(t *testing.T) {
	detector := NewTechnologyDetector(DefaultThresholds())

	item := gitlabItem(t, "Update backend", "Adjusts the session handlers")
	story := storyWith(item)
	story.ComplexityScore = 0.95

	detector.Enrich([]*evidence.WorkStory{story})

	if story.ComplexityScore >= 0.95 {
		t.Errorf("ComplexityScore = %v, want the recomputed lower value", story.ComplexityScore)
	}
	if story.ComplexityScore < 0 || story.ComplexityScore > 1 {
		t.Errorf("ComplexityScore = %v, out of [0, 1]", story.ComplexityScore)
	}
}

func TestComplexityContentSignals(t *testing.T) {
	detector := NewTechnologyDetector(DefaultThresholds())

	heavy := storyWith(gitlabItem(t, "Distributed architecture work",
		"Performance and optimization of the scalable microservice layer"))
	trivial := storyWith(gitlabItem(t, "Minor typo", "Corrects a typo in the login label"))

	detector.Enrich([]*evidence.WorkStory{heavy, trivial})

	if heavy.ComplexityScore <= trivial.ComplexityScore {
		t.Errorf("complexity ordering broken: heavy %v <= trivial %v",
			heavy.ComplexityScore, trivial.ComplexityScore)
	}
}

func TestComplexityKeywordCountsOncePerStory(t *testing.T) {
	one := storyWith(
		gitlabItem(t, "Expose the api endpoint", "Adds the billing api route"))
	three := storyWith(
		gitlabItem(t, "Expose the api endpoint", "Adds the billing api route"),
		gitlabItem(t, "Document the api", "Describes the billing api route"),
		gitlabItem(t, "Harden the api", "Locks down the billing api route"))

	got := contentComplexity(three.EvidenceItems)
	if got < 0.029 || got > 0.031 {
		t.Errorf("contentComplexity() = %v, want 0.03 for one keyword", got)
	}
	if single := contentComplexity(one.EvidenceItems); single != got {
		t.Errorf("repeated mentions changed the score: %v vs %v", got, single)
	}
}

func TestComplexityDurationBonus(t *testing.T) {
	detector := NewTechnologyDetector(DefaultThresholds())

	long := storyWith(gitlabItem(t, "Update backend", "Adjusts the session handlers"))
	longDuration := 40 * 24 * time.Hour
	long.Duration = &longDuration

	flat := storyWith(gitlabItem(t, "Update backend", "Adjusts the session handlers"))
	flatDuration := 10 * 24 * time.Hour
	flat.Duration = &flatDuration

	detector.Enrich([]*evidence.WorkStory{long, flat})

	diff := long.ComplexityScore - flat.ComplexityScore
	if diff < 0.099 || diff > 0.101 {
		t.Errorf("long-cycle bonus = %v, want 0.1", diff)
	}
}

func TestTechnologyInsights(t *testing.T) {
	detector := NewTechnologyDetector(DefaultThresholds())

	pyItem := gitlabItem(t, "Update backend", "Adjusts the session handlers")
	pyItem.Metadata["files_changed"] = "src/app.py"
	pyOnly := storyWith(pyItem)
	pyOnly.TechnologyStack = detector.DetectStack(pyOnly.EvidenceItems)

	mixedItem := gitlabItem(t, "Update backend again", "Adjusts the other handlers")
	mixedItem.Metadata["files_changed"] = []string{"src/worker.py", "ui/App.tsx"}
	mixed := storyWith(mixedItem)
	mixed.TechnologyStack = detector.DetectStack(mixed.EvidenceItems)

	insights := detector.Insights([]*evidence.WorkStory{pyOnly, mixed})

	if len(insights) != 2 {
		t.Fatalf("Insights() returned %d entries, want 2", len(insights))
	}
	if insights[0].Technology != "Python" || insights[0].UsageCount != 2 {
		t.Errorf("top insight = %+v, want Python with usage 2", insights[0])
	}
	if insights[1].Technology != "React" || insights[1].UsageCount != 1 {
		t.Errorf("second insight = %+v, want React with usage 1", insights[1])
	}
	if len(insights[0].EvidenceSources) != 2 {
		t.Errorf("Python evidence sources = %v, want both items", insights[0].EvidenceSources)
	}
}

func TestDistribution(t *testing.T) {
	detector := NewTechnologyDetector(DefaultThresholds())

	a := storyWith()
	a.TechnologyStack = []string{"Python", "React"}
	b := storyWith()
	b.TechnologyStack = []string{"Python"}

	got := detector.Distribution([]*evidence.WorkStory{a, b})
	want := map[string]int{"Python": 2, "React": 1}
	if !cmp.Equal(got, want) {
		t.Errorf("Distribution() = %v, want %v", got, want)
	}
}

func TestSkillLevel(t *testing.T) {
	detector := NewTechnologyDetector(DefaultThresholds())

	items := []*evidence.Item{
		gitlabItem(t, "Python worker pool", "Design of the scalable python worker architecture"),
		gitlabItem(t, "Python importer", "Python importer slice one"),
		gitlabItem(t, "Python importer tests", "Python importer slice two"),
	}

	if got := detector.SkillLevel("Python", items); got != "advanced" {
		t.Errorf("SkillLevel() = %q, want advanced", got)
	}
	if got := detector.SkillLevel("Python", items[1:2]); got != "beginner" {
		t.Errorf("SkillLevel() single plain mention = %q, want beginner", got)
	}
	if got := detector.SkillLevel("Rust", items); got != "beginner" {
		t.Errorf("SkillLevel() unmentioned = %q, want beginner", got)
	}
}
