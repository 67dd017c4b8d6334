package correlation

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/worklens/backend/internal/evidence"
	"github.com/worklens/backend/internal/metrics"
	"github.com/worklens/backend/pkg/logger"
)

const (
	relationshipDetectorVersion = "1.0"
	workStoryGrouperVersion     = "1.0"
	confidenceScorerVersion     = "1.0"
)

// SemanticMatcher finds relationships rule-based detection misses. The
// returned relationships are merged into the run's set without regrouping.
type SemanticMatcher interface {
	Match(ctx context.Context, items []*evidence.Item, existing []*evidence.Relationship) []*evidence.Relationship
}

// Request configures one correlation run.
type Request struct {
	EvidenceItems []*evidence.Item `json:"evidence_items"`

	ConfidenceThreshold float64 `json:"confidence_threshold"`
	MaxWorkStories      int     `json:"max_work_stories"`
	MinEvidencePerStory int     `json:"min_evidence_per_story"`

	IncludeTimelineAnalysis   bool `json:"include_timeline_analysis"`
	IncludeTechnologyAnalysis bool `json:"include_technology_analysis"`
	GenerateInsights          bool `json:"generate_insights"`
}

// DefaultRequest returns a request with the standard analysis settings.
func DefaultRequest(items []*evidence.Item) Request {
	return Request{
		EvidenceItems:             items,
		ConfidenceThreshold:       0.3,
		MaxWorkStories:            50,
		MinEvidencePerStory:       2,
		IncludeTimelineAnalysis:   true,
		IncludeTechnologyAnalysis: true,
		GenerateInsights:          true,
	}
}

// Response is the outcome of one correlation run. Success is false only for
// empty input or an internal failure; a run that finds nothing still succeeds.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`

	Collection *evidence.CorrelatedCollection `json:"collection,omitempty"`

	ItemsProcessed        int      `json:"items_processed"`
	WorkStoriesCreated    int      `json:"work_stories_created"`
	RelationshipsDetected int      `json:"relationships_detected"`
	AvgConfidenceScore    float64  `json:"avg_confidence_score"`
	CorrelationCoverage   float64  `json:"correlation_coverage"`
	ProcessingTimeMS      int      `json:"processing_time_ms"`
	Errors                []string `json:"errors"`
	Warnings              []string `json:"warnings"`
}

// Engine runs the full correlation pipeline: detect, score, filter, group,
// enrich, and summarize.
type Engine struct {
	cfg        Thresholds
	linker     *Linker
	scorer     *Scorer
	grouper    *Grouper
	timeline   *TimelineAnalyzer
	technology *TechnologyDetector
	matcher    SemanticMatcher
	now        func() time.Time
}

func NewEngine(cfg Thresholds) *Engine {
	return &Engine{
		cfg:        cfg,
		linker:     NewLinker(cfg),
		scorer:     NewScorer(cfg),
		grouper:    NewGrouper(cfg),
		timeline:   NewTimelineAnalyzer(cfg),
		technology: NewTechnologyDetector(cfg),
		now:        time.Now,
	}
}

// WithSemanticMatcher enables the semantic tier. A nil matcher disables it.
func (e *Engine) WithSemanticMatcher(matcher SemanticMatcher) *Engine {
	e.matcher = matcher
	return e
}

// Correlate never panics; internal failures come back as an unsuccessful
// response with the failure message.
func (e *Engine) Correlate(ctx context.Context, req Request) (resp *Response) {
	started := e.now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Correlation run failed", zap.Any("panic", r))
			message := fmt.Sprintf("correlation failed: %v", r)
			resp = &Response{
				Success:          false,
				Message:          message,
				ItemsProcessed:   len(req.EvidenceItems),
				Errors:           []string{message},
				Warnings:         []string{},
				ProcessingTimeMS: int(e.now().Sub(started).Milliseconds()),
			}
			metrics.CorrelationTotal.WithLabelValues("error").Inc()
		}
	}()

	if len(req.EvidenceItems) == 0 {
		metrics.CorrelationTotal.WithLabelValues("empty").Inc()
		message := "No evidence items provided for correlation"
		return &Response{
			Success:          false,
			Message:          message,
			Errors:           []string{message},
			Warnings:         []string{},
			ProcessingTimeMS: int(e.now().Sub(started).Milliseconds()),
		}
	}

	threshold := req.ConfidenceThreshold
	maxStories := req.MaxWorkStories
	if maxStories <= 0 {
		maxStories = 50
	}
	minEvidence := req.MinEvidencePerStory
	if minEvidence <= 0 {
		minEvidence = 2
	}

	logger.Info("Starting correlation run",
		zap.Int("evidence_items", len(req.EvidenceItems)),
		zap.Float64("confidence_threshold", threshold),
	)

	itemsByID := map[string]*evidence.Item{}
	var gitlabItems, jiraItems []*evidence.Item
	for _, item := range req.EvidenceItems {
		itemsByID[item.ID] = item
		switch item.Platform {
		case evidence.PlatformGitLab:
			gitlabItems = append(gitlabItems, item)
		case evidence.PlatformJira:
			jiraItems = append(jiraItems, item)
		}
	}

	detected := e.linker.Detect(gitlabItems, jiraItems)

	var filtered []*evidence.Relationship
	for _, rel := range detected {
		primary := itemsByID[rel.PrimaryEvidenceID]
		related := itemsByID[rel.RelatedEvidenceID]
		if primary == nil || related == nil {
			continue
		}
		rel.ConfidenceScore = e.scorer.Score(rel, primary, related)
		if !e.scorer.Validate(rel, primary, related) {
			continue
		}
		if rel.ConfidenceScore >= threshold {
			filtered = append(filtered, rel)
		}
	}

	stories := e.grouper.Group(req.EvidenceItems, filtered, minEvidence, maxStories)

	if req.IncludeTimelineAnalysis {
		e.timeline.Enrich(stories)
	}
	if req.IncludeTechnologyAnalysis {
		e.technology.Enrich(stories)
	}

	if e.matcher != nil {
		semantic := e.matcher.Match(ctx, req.EvidenceItems, filtered)
		filtered = MergeRelationships(filtered, semantic)
	}

	collection := &evidence.CorrelatedCollection{
		EvidenceItems:      req.EvidenceItems,
		TotalEvidenceCount: len(req.EvidenceItems),
		WorkStories:        stories,
		Relationships:      filtered,
		Metadata: map[string]any{
			"confidence_threshold":          threshold,
			"total_relationships_detected":  len(detected),
			"filtered_relationships":        len(filtered),
			"relationship_detector_version": relationshipDetectorVersion,
			"work_story_grouper_version":    workStoryGrouperVersion,
			"confidence_scorer_version":     confidenceScorerVersion,
		},
	}

	if req.GenerateInsights {
		collection.Insights = e.generateInsights(req, stories, filtered)
	}

	avgConfidence := averageConfidence(filtered)
	elapsed := int(e.now().Sub(started).Milliseconds())
	collection.ProcessingTimeMS = elapsed

	e.recordMetrics(req, stories, filtered, collection, started)

	logger.Info("Correlation run complete",
		zap.Int("work_stories", len(stories)),
		zap.Int("relationships", len(filtered)),
		zap.Float64("avg_confidence", avgConfidence),
		zap.Int("processing_time_ms", elapsed),
	)

	return &Response{
		Success:               true,
		Collection:            collection,
		ItemsProcessed:        len(req.EvidenceItems),
		WorkStoriesCreated:    len(stories),
		RelationshipsDetected: len(filtered),
		AvgConfidenceScore:    avgConfidence,
		CorrelationCoverage:   collection.CorrelationCoverage(),
		ProcessingTimeMS:      elapsed,
		Errors:                []string{},
		Warnings:              []string{},
	}
}

func (e *Engine) generateInsights(req Request, stories []*evidence.WorkStory, relationships []*evidence.Relationship) *evidence.Insights {
	insights := &evidence.Insights{
		TotalWorkStories:   len(stories),
		TotalRelationships: len(relationships),
		AvgConfidenceScore: averageConfidence(relationships),
		GeneratedAt:        e.now(),
	}

	if req.IncludeTechnologyAnalysis {
		insights.TechnologyDistribution = e.technology.Distribution(stories)
		insights.TechnologyInsights = e.technology.Insights(stories)
	}
	if req.IncludeTimelineAnalysis {
		insights.WorkPatterns = e.timeline.DetectPatterns(stories)
	}

	insights.SprintMetrics = e.sprintMetrics(stories)
	insights.CollaborationScore = collaborationScore(stories)

	if len(req.EvidenceItems) > 0 {
		minDate := req.EvidenceItems[0].EvidenceDate
		maxDate := req.EvidenceItems[0].EvidenceDate
		for _, item := range req.EvidenceItems {
			if item.EvidenceDate.Before(minDate) {
				minDate = item.EvidenceDate
			}
			if item.EvidenceDate.After(maxDate) {
				maxDate = item.EvidenceDate
			}
		}
		insights.AnalysisPeriodStart = minDate
		insights.AnalysisPeriodEnd = maxDate
	}

	return insights
}

func (e *Engine) sprintMetrics(stories []*evidence.WorkStory) map[string]float64 {
	if len(stories) == 0 {
		return nil
	}

	completed := 0
	crossPlatform := 0
	totalDuration := 0.0
	durations := 0
	for _, story := range stories {
		if story.Status == evidence.StatusCompleted {
			completed++
		}
		if len(story.Platforms()) > 1 {
			crossPlatform++
		}
		if story.Duration != nil {
			totalDuration += story.Duration.Hours() / 24
			durations++
		}
	}

	sprintMetrics := map[string]float64{
		"completion_rate":        float64(completed) / float64(len(stories)),
		"cross_platform_stories": float64(crossPlatform) / float64(len(stories)),
	}
	if durations > 0 {
		sprintMetrics["avg_story_duration_days"] = totalDuration / float64(durations)
	}
	return sprintMetrics
}

func collaborationScore(stories []*evidence.WorkStory) float64 {
	if len(stories) == 0 {
		return 0.0
	}

	crossPlatform := 0
	multiMember := 0
	for _, story := range stories {
		if len(story.Platforms()) > 1 {
			crossPlatform++
		}
		if len(story.TeamMembersInvolved) > 1 {
			multiMember++
		}
	}

	return math.Min(float64(crossPlatform+multiMember)/(2.0*float64(len(stories))), 1.0)
}

func averageConfidence(relationships []*evidence.Relationship) float64 {
	if len(relationships) == 0 {
		return 0.0
	}
	total := 0.0
	for _, rel := range relationships {
		total += rel.ConfidenceScore
	}
	return total / float64(len(relationships))
}

func (e *Engine) recordMetrics(req Request, stories []*evidence.WorkStory, relationships []*evidence.Relationship, collection *evidence.CorrelatedCollection, started time.Time) {
	metrics.CorrelationTotal.WithLabelValues("success").Inc()
	metrics.CorrelationDuration.WithLabelValues("success").Observe(e.now().Sub(started).Seconds())
	metrics.EvidenceProcessed.Add(float64(len(req.EvidenceItems)))
	metrics.WorkStoriesCreated.Observe(float64(len(stories)))
	metrics.CorrelationCoverage.Set(collection.CorrelationCoverage())
	for _, rel := range relationships {
		metrics.RelationshipsDetected.WithLabelValues(string(rel.DetectionMethod)).Inc()
		metrics.RelationshipConfidence.Observe(rel.ConfidenceScore)
	}
}

// MergeRelationships folds additions into the existing set by unordered pair.
// A new pair is appended; a known pair annotates the existing relationship
// and raises its confidence to the higher of the two.
func MergeRelationships(existing, additions []*evidence.Relationship) []*evidence.Relationship {
	byPair := map[string]*evidence.Relationship{}
	for _, rel := range existing {
		byPair[rel.PairKey()] = rel
	}

	merged := existing
	for _, rel := range additions {
		current, ok := byPair[rel.PairKey()]
		if !ok {
			byPair[rel.PairKey()] = rel
			merged = append(merged, rel)
			continue
		}
		current.Metadata["alternate_confidence"] = rel.ConfidenceScore
		current.Metadata["alternate_method"] = string(rel.DetectionMethod)
		if summary, ok := rel.Metadata["llm_reasoning"]; ok {
			current.Metadata["alternate_reasoning"] = summary
		}
		if rel.ConfidenceScore > current.ConfidenceScore {
			current.ConfidenceScore = rel.ConfidenceScore
		}
	}
	return merged
}
