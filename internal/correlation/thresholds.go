package correlation

// Thresholds collects the tunable constants of the rule-based pipeline.
// The defaults are the values the algorithms were calibrated with; tests
// and config can override individual fields.
type Thresholds struct {
	// Linker
	IssueKeyConfidence     float64
	BranchNameConfidence   float64
	ContentSimilarityMin   float64
	ContentConfidenceScale float64

	// Scorer
	TemporalBonusWindowDays int

	// Grouper
	GroupingConfidenceMin    float64
	RecentActivityWindowDays int
	OrphanWindowDays         int

	// Timeline analyzer
	SprintGapDays  int
	SprintMinItems int
	LongCycleDays  int
	QuickTurnDays  int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		IssueKeyConfidence:       0.9,
		BranchNameConfidence:     0.7,
		ContentSimilarityMin:     0.3,
		ContentConfidenceScale:   0.6,
		TemporalBonusWindowDays:  7,
		GroupingConfidenceMin:    0.5,
		RecentActivityWindowDays: 7,
		OrphanWindowDays:         7,
		SprintGapDays:            3,
		SprintMinItems:           3,
		LongCycleDays:            30,
		QuickTurnDays:            3,
	}
}
