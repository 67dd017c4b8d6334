package correlation

import (
	"context"
	"testing"

	"github.com/worklens/backend/internal/evidence"
)

type stubMatcher struct {
	relationships []*evidence.Relationship
	calls         int
}

func (m *stubMatcher) Match(_ context.Context, _ []*evidence.Item, _ []*evidence.Relationship) []*evidence.Relationship {
	m.calls++
	return m.relationships
}

func TestCorrelateEmptyInput(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	resp := engine.Correlate(context.Background(), DefaultRequest(nil))

	if resp.Success {
		t.Error("Correlate() succeeded on empty input")
	}
	if resp.Message != "No evidence items provided for correlation" {
		t.Errorf("Message = %q", resp.Message)
	}
	if resp.ItemsProcessed != 0 {
		t.Errorf("ItemsProcessed = %d, want 0", resp.ItemsProcessed)
	}
	if len(resp.Errors) != 1 || resp.Errors[0] != resp.Message {
		t.Errorf("Errors = %v, want exactly the failure message", resp.Errors)
	}
	if len(resp.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", resp.Warnings)
	}
	if resp.Collection != nil {
		t.Error("Collection should be nil on empty input")
	}
}

func TestCorrelateFullPipeline(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	commit := gitlabItem(t, "Fixes TEST-1234 session timeout", "Corrects the idle session expiry on mobile")
	commit.Metadata["files_changed"] = []string{"src/sessions.py", "src/sessions_test.py"}
	ticket := jiraItem(t, "TEST-1234 Session timeout on mobile", "Users are logged out after thirty seconds")

	resp := engine.Correlate(context.Background(), DefaultRequest([]*evidence.Item{commit, ticket}))

	if !resp.Success {
		t.Fatalf("Correlate() failed: %s", resp.Message)
	}
	if resp.WorkStoriesCreated != 1 {
		t.Fatalf("WorkStoriesCreated = %d, want 1", resp.WorkStoriesCreated)
	}
	if resp.RelationshipsDetected != 1 {
		t.Fatalf("RelationshipsDetected = %d, want 1", resp.RelationshipsDetected)
	}
	if resp.AvgConfidenceScore <= 0.9 {
		t.Errorf("AvgConfidenceScore = %v, want above the issue key baseline", resp.AvgConfidenceScore)
	}
	if resp.ItemsProcessed != 2 {
		t.Errorf("ItemsProcessed = %d, want 2", resp.ItemsProcessed)
	}
	if resp.CorrelationCoverage != 100.0 {
		t.Errorf("CorrelationCoverage = %v, want 100", resp.CorrelationCoverage)
	}
	if len(resp.Errors) != 0 {
		t.Errorf("Errors = %v, want none on success", resp.Errors)
	}

	collection := resp.Collection
	if collection == nil {
		t.Fatal("Collection is nil")
	}
	if got := collection.CorrelationCoverage(); got != 100.0 {
		t.Errorf("CorrelationCoverage() = %v, want 100", got)
	}
	for _, key := range []string{
		"confidence_threshold",
		"total_relationships_detected",
		"filtered_relationships",
		"relationship_detector_version",
		"work_story_grouper_version",
		"confidence_scorer_version",
	} {
		if _, ok := collection.Metadata[key]; !ok {
			t.Errorf("collection metadata missing %q", key)
		}
	}

	story := collection.WorkStories[0]
	if story.PrimaryJiraTicket != "TEST-1234" {
		t.Errorf("PrimaryJiraTicket = %q, want TEST-1234", story.PrimaryJiraTicket)
	}
	input := map[string]bool{commit.ID: true, ticket.ID: true}
	inStory := map[string]bool{}
	for _, item := range story.EvidenceItems {
		if !input[item.ID] {
			t.Errorf("story contains %s, which was never submitted", item.ID)
		}
		inStory[item.ID] = true
	}
	for _, rel := range story.Relationships {
		if !inStory[rel.PrimaryEvidenceID] || !inStory[rel.RelatedEvidenceID] {
			t.Errorf("story relationship %s -> %s reaches outside the story",
				rel.PrimaryEvidenceID, rel.RelatedEvidenceID)
		}
	}
	if len(story.TechnologyStack) == 0 {
		t.Error("technology enrichment did not run")
	}
	if _, ok := story.Metadata["work_sequence"]; !ok {
		t.Error("timeline enrichment did not run")
	}
}

func TestCorrelateInsights(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	commit := gitlabItem(t, "Fixes TEST-1234 session timeout", "Corrects the idle session expiry on mobile")
	ticket := jiraItem(t, "TEST-1234 Session timeout on mobile", "Users are logged out after thirty seconds")

	resp := engine.Correlate(context.Background(), DefaultRequest([]*evidence.Item{commit, ticket}))
	if !resp.Success {
		t.Fatalf("Correlate() failed: %s", resp.Message)
	}

	insights := resp.Collection.Insights
	if insights == nil {
		t.Fatal("Insights is nil")
	}
	if insights.TotalWorkStories != 1 || insights.TotalRelationships != 1 {
		t.Errorf("insight totals = %d stories, %d relationships",
			insights.TotalWorkStories, insights.TotalRelationships)
	}
	if got := insights.SprintMetrics["cross_platform_stories"]; got != 1.0 {
		t.Errorf("cross_platform_stories = %v, want 1", got)
	}
	if got := insights.CollaborationScore; got != 1.0 {
		t.Errorf("CollaborationScore = %v, want 1", got)
	}
	if !insights.AnalysisPeriodStart.Equal(ticket.EvidenceDate) {
		t.Errorf("AnalysisPeriodStart = %v, want the earliest evidence date", insights.AnalysisPeriodStart)
	}
	if !insights.AnalysisPeriodEnd.Equal(commit.EvidenceDate) {
		t.Errorf("AnalysisPeriodEnd = %v, want the latest evidence date", insights.AnalysisPeriodEnd)
	}
}

func TestCorrelateThresholdFiltersWeakRelationships(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	commit := gitlabItem(t, "Refactor payment gateway retry logic", "Reworks payment gateway retry logic internals")
	ticket := jiraItem(t, "Payment gateway retry logic cleanup", "Payment gateway retry logic needs restructuring")
	items := []*evidence.Item{commit, ticket}

	permissive := engine.Correlate(context.Background(), DefaultRequest(items))
	if !permissive.Success {
		t.Fatalf("Correlate() failed: %s", permissive.Message)
	}
	if permissive.RelationshipsDetected != 1 {
		t.Fatalf("RelationshipsDetected = %d at default threshold, want 1", permissive.RelationshipsDetected)
	}

	strict := DefaultRequest(items)
	strict.ConfidenceThreshold = 0.99

	resp := engine.Correlate(context.Background(), strict)
	if !resp.Success {
		t.Fatalf("Correlate() failed: %s", resp.Message)
	}
	if resp.RelationshipsDetected != 0 {
		t.Errorf("RelationshipsDetected = %d, want 0 above threshold", resp.RelationshipsDetected)
	}
	if resp.WorkStoriesCreated != 0 {
		t.Errorf("WorkStoriesCreated = %d, want 0 for single-item platforms", resp.WorkStoriesCreated)
	}

	loose := DefaultRequest(items)
	loose.ConfidenceThreshold = 0.2

	looseResp := engine.Correlate(context.Background(), loose)
	if !looseResp.Success {
		t.Fatalf("Correlate() failed: %s", looseResp.Message)
	}
	if looseResp.RelationshipsDetected < permissive.RelationshipsDetected {
		t.Errorf("lowering the threshold dropped relationships: %d < %d",
			looseResp.RelationshipsDetected, permissive.RelationshipsDetected)
	}
	if looseResp.WorkStoriesCreated < permissive.WorkStoriesCreated {
		t.Errorf("lowering the threshold dropped stories: %d < %d",
			looseResp.WorkStoriesCreated, permissive.WorkStoriesCreated)
	}
}

func TestCorrelateDeterministicAcrossRuns(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	commit := gitlabItem(t, "Fixes TEST-1234 session timeout", "Corrects the idle session expiry on mobile")
	ticket := jiraItem(t, "TEST-1234 Session timeout on mobile", "Users are logged out after thirty seconds")
	items := []*evidence.Item{commit, ticket}

	first := engine.Correlate(context.Background(), DefaultRequest(items))
	second := engine.Correlate(context.Background(), DefaultRequest(items))

	if first.WorkStoriesCreated != second.WorkStoriesCreated ||
		first.RelationshipsDetected != second.RelationshipsDetected {
		t.Errorf("runs disagree: %d/%d stories, %d/%d relationships",
			first.WorkStoriesCreated, second.WorkStoriesCreated,
			first.RelationshipsDetected, second.RelationshipsDetected)
	}
	if first.AvgConfidenceScore != second.AvgConfidenceScore {
		t.Errorf("confidence drifted between runs: %v vs %v",
			first.AvgConfidenceScore, second.AvgConfidenceScore)
	}
}

func TestCorrelateSemanticMatcherAddsPairs(t *testing.T) {
	commit := gitlabItem(t, "Refactor connection pool", "Rework of the pool sizing heuristics")
	ticket := jiraItem(t, "Intermittent connection drops", "Clients disconnect under load spikes")

	semantic := evidence.NewRelationship(commit.ID, ticket.ID,
		evidence.RelSemanticSimilarity, 0.85, evidence.MethodLLMSemantic)
	matcher := &stubMatcher{relationships: []*evidence.Relationship{semantic}}

	engine := NewEngine(DefaultThresholds()).WithSemanticMatcher(matcher)

	resp := engine.Correlate(context.Background(), DefaultRequest([]*evidence.Item{commit, ticket}))
	if !resp.Success {
		t.Fatalf("Correlate() failed: %s", resp.Message)
	}
	if matcher.calls != 1 {
		t.Errorf("matcher called %d times, want 1", matcher.calls)
	}
	if resp.RelationshipsDetected != 1 {
		t.Fatalf("RelationshipsDetected = %d, want the semantic pair", resp.RelationshipsDetected)
	}
	if resp.Collection.Relationships[0].DetectionMethod != evidence.MethodLLMSemantic {
		t.Errorf("DetectionMethod = %q, want llm_semantic", resp.Collection.Relationships[0].DetectionMethod)
	}
}

func TestMergeRelationshipsNewPair(t *testing.T) {
	existing := []*evidence.Relationship{
		evidence.NewRelationship("a", "b", evidence.RelSolves, 0.9, evidence.MethodIssueKey),
	}
	addition := evidence.NewRelationship("a", "c",
		evidence.RelSemanticSimilarity, 0.75, evidence.MethodLLMSemantic)

	merged := MergeRelationships(existing, []*evidence.Relationship{addition})

	if len(merged) != 2 {
		t.Fatalf("merged %d relationships, want 2", len(merged))
	}
	if merged[1] != addition {
		t.Error("new pair was not appended")
	}
}

func TestMergeRelationshipsAnnotatesKnownPair(t *testing.T) {
	existing := []*evidence.Relationship{
		evidence.NewRelationship("a", "b", evidence.RelSolves, 0.6, evidence.MethodContentAnalysis),
	}
	duplicate := evidence.NewRelationship("b", "a",
		evidence.RelSemanticSimilarity, 0.8, evidence.MethodLLMSemantic)
	duplicate.Metadata["llm_reasoning"] = "Both describe the pool sizing rework"

	merged := MergeRelationships(existing, []*evidence.Relationship{duplicate})

	if len(merged) != 1 {
		t.Fatalf("merged %d relationships, want 1", len(merged))
	}
	rel := merged[0]
	if rel.ConfidenceScore != 0.8 {
		t.Errorf("ConfidenceScore = %v, want raised to 0.8", rel.ConfidenceScore)
	}
	if rel.Metadata["alternate_confidence"] != 0.8 {
		t.Errorf("alternate_confidence = %v", rel.Metadata["alternate_confidence"])
	}
	if rel.Metadata["alternate_method"] != string(evidence.MethodLLMSemantic) {
		t.Errorf("alternate_method = %v", rel.Metadata["alternate_method"])
	}
	if rel.Metadata["alternate_reasoning"] != "Both describe the pool sizing rework" {
		t.Errorf("alternate_reasoning = %v", rel.Metadata["alternate_reasoning"])
	}
}

func TestMergeRelationshipsKeepsHigherExistingConfidence(t *testing.T) {
	existing := []*evidence.Relationship{
		evidence.NewRelationship("a", "b", evidence.RelSolves, 0.9, evidence.MethodIssueKey),
	}
	duplicate := evidence.NewRelationship("a", "b",
		evidence.RelSemanticSimilarity, 0.7, evidence.MethodLLMSemantic)

	merged := MergeRelationships(existing, []*evidence.Relationship{duplicate})

	if merged[0].ConfidenceScore != 0.9 {
		t.Errorf("ConfidenceScore = %v, want the original 0.9 kept", merged[0].ConfidenceScore)
	}
}
