package evidence

import "time"

// TechnologyInsight summarizes how often one technology shows up across all
// work stories of a run.
type TechnologyInsight struct {
	Technology      string    `json:"technology"`
	UsageCount      int       `json:"usage_count"`
	ConfidenceScore float64   `json:"confidence_score"`
	EvidenceSources []string  `json:"evidence_sources"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
}

// WorkPattern is a detected cross-story rhythm such as commit frequency or
// review cycle length.
type WorkPattern struct {
	PatternType     string    `json:"pattern_type"`
	Description     string    `json:"description"`
	Frequency       float64   `json:"frequency"`
	ConfidenceScore float64   `json:"confidence_score"`
	EvidenceCount   int       `json:"evidence_count"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
}

// Insights is the read-only aggregate summary over one correlation run.
// It is regenerated every run and never persisted by the engine.
type Insights struct {
	TotalWorkStories   int     `json:"total_work_stories"`
	TotalRelationships int     `json:"total_relationships"`
	AvgConfidenceScore float64 `json:"avg_confidence_score"`

	TechnologyDistribution map[string]int      `json:"technology_distribution,omitempty"`
	TechnologyInsights     []TechnologyInsight `json:"technology_insights,omitempty"`

	WorkPatterns []*WorkPattern `json:"work_patterns,omitempty"`

	SprintMetrics      map[string]float64 `json:"sprint_performance_metrics,omitempty"`
	CollaborationScore float64            `json:"collaboration_score"`

	AnalysisPeriodStart time.Time `json:"analysis_period_start,omitempty"`
	AnalysisPeriodEnd   time.Time `json:"analysis_period_end,omitempty"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// CorrelatedCollection is the full output envelope of one run: the original
// evidence, all stories, the filtered relationship set, optional insights,
// and run metadata.
type CorrelatedCollection struct {
	EvidenceItems      []*Item         `json:"evidence_items"`
	TotalEvidenceCount int             `json:"total_evidence_count"`
	WorkStories        []*WorkStory    `json:"work_stories"`
	Relationships      []*Relationship `json:"relationships"`
	Insights           *Insights       `json:"insights,omitempty"`

	Metadata         map[string]any `json:"correlation_metadata,omitempty"`
	ProcessingTimeMS int            `json:"processing_time_ms"`
}

// CorrelationCoverage is the percentage of evidence items that ended up in
// at least one work story.
func (c *CorrelatedCollection) CorrelationCoverage() float64 {
	if len(c.EvidenceItems) == 0 {
		return 0.0
	}

	correlated := map[string]bool{}
	for _, story := range c.WorkStories {
		for _, item := range story.EvidenceItems {
			correlated[item.ID] = true
		}
	}

	return float64(len(correlated)) / float64(len(c.EvidenceItems)) * 100.0
}
