package correlation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/worklens/backend/internal/evidence"
)

// WorkSequence describes the ordering patterns inside one story's activity.
type WorkSequence struct {
	Patterns []string `json:"patterns"`
}

// DevelopmentPatterns captures when and where a story's activity happened.
type DevelopmentPatterns struct {
	ActivityByWeekday  map[string]int `json:"activity_by_weekday"`
	ActivityByPlatform map[string]int `json:"activity_by_platform"`
	ActivitiesPerDay   float64        `json:"activities_per_day"`
}

// VelocityMetrics summarizes weekly activity volume for one story.
type VelocityMetrics struct {
	AvgWeeklyActivity float64 `json:"avg_weekly_activity"`
	MaxWeeklyActivity int     `json:"max_weekly_activity"`
	MinWeeklyActivity int     `json:"min_weekly_activity"`
	Consistency       float64 `json:"consistency"`
}

// CrossPlatformTiming measures the handoff between planning and delivery
// platforms for stories that span both.
type CrossPlatformTiming struct {
	JiraToGitlabDelayDays   float64 `json:"jira_to_gitlab_delay_days"`
	DevelopmentDurationDays float64 `json:"development_duration_days"`
	TotalCycleTimeDays      float64 `json:"total_cycle_time_days"`
}

// SprintCluster is a burst of temporally dense activity across a run's
// evidence, used as a sprint approximation when no sprint metadata exists.
type SprintCluster struct {
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	ItemCount    int       `json:"item_count"`
	DurationDays float64   `json:"duration_days"`
}

// TimelineAnalyzer enriches stories with temporal structure and derives
// cross-story work patterns.
type TimelineAnalyzer struct {
	cfg Thresholds
	now func() time.Time
}

func NewTimelineAnalyzer(cfg Thresholds) *TimelineAnalyzer {
	return &TimelineAnalyzer{cfg: cfg, now: time.Now}
}

// Enrich attaches sequence, development, velocity, and cross-platform timing
// analyses to every story's metadata. The grouper's timeline bounds stand.
func (t *TimelineAnalyzer) Enrich(stories []*evidence.WorkStory) {
	for _, story := range stories {
		chronological := sortedByDate(story.EvidenceItems)

		story.Metadata["work_sequence"] = t.analyzeSequence(chronological)
		story.Metadata["development_patterns"] = analyzeDevelopmentPatterns(chronological)
		story.Metadata["velocity_metrics"] = analyzeVelocity(chronological)
		if timing := analyzeCrossPlatformTiming(chronological); timing != nil {
			story.Metadata["cross_platform_timing"] = timing
		}
	}
}

func (t *TimelineAnalyzer) analyzeSequence(chronological []*evidence.Item) WorkSequence {
	seq := WorkSequence{}
	if len(chronological) < 2 {
		return seq
	}

	// Ticket-driven development: planning precedes delivery activity.
	jiraEarly := false
	for i, item := range chronological {
		if i >= 2 {
			break
		}
		if item.Platform == evidence.PlatformJira {
			jiraEarly = true
		}
	}
	gitlabLater := false
	for _, item := range chronological[1:] {
		if item.Platform == evidence.PlatformGitLab {
			gitlabLater = true
			break
		}
	}
	if jiraEarly && gitlabLater {
		seq.Patterns = append(seq.Patterns, "ticket_driven_development")
	}

	rapid := 0
	for i := 1; i < len(chronological); i++ {
		if chronological[i].EvidenceDate.Sub(chronological[i-1].EvidenceDate) <= 24*time.Hour {
			rapid++
		}
	}
	if float64(rapid) >= float64(len(chronological)-1)*0.5 {
		seq.Patterns = append(seq.Patterns, "rapid_iteration")
	}

	span := chronological[len(chronological)-1].EvidenceDate.Sub(chronological[0].EvidenceDate)
	switch {
	case span > time.Duration(t.cfg.LongCycleDays)*24*time.Hour:
		seq.Patterns = append(seq.Patterns, "long_development_cycle")
	case span <= time.Duration(t.cfg.QuickTurnDays)*24*time.Hour:
		seq.Patterns = append(seq.Patterns, "quick_turnaround")
	}

	return seq
}

func analyzeDevelopmentPatterns(chronological []*evidence.Item) DevelopmentPatterns {
	patterns := DevelopmentPatterns{
		ActivityByWeekday:  map[string]int{},
		ActivityByPlatform: map[string]int{},
	}
	if len(chronological) == 0 {
		return patterns
	}

	for _, item := range chronological {
		patterns.ActivityByWeekday[item.EvidenceDate.Weekday().String()]++
		patterns.ActivityByPlatform[string(item.Platform)]++
	}

	span := chronological[len(chronological)-1].EvidenceDate.Sub(chronological[0].EvidenceDate)
	activeDays := int(span.Hours()/24) + 1
	if activeDays < 1 {
		activeDays = 1
	}
	patterns.ActivitiesPerDay = float64(len(chronological)) / float64(activeDays)
	return patterns
}

func analyzeVelocity(chronological []*evidence.Item) VelocityMetrics {
	metrics := VelocityMetrics{}
	if len(chronological) == 0 {
		return metrics
	}

	weekly := map[string]int{}
	for _, item := range chronological {
		year, week := item.EvidenceDate.ISOWeek()
		weekly[fmt.Sprintf("%d-W%02d", year, week)]++
	}

	total := 0
	max := 0
	min := len(chronological)
	for _, count := range weekly {
		total += count
		if count > max {
			max = count
		}
		if count < min {
			min = count
		}
	}

	metrics.AvgWeeklyActivity = float64(total) / float64(len(weekly))
	metrics.MaxWeeklyActivity = max
	metrics.MinWeeklyActivity = min
	denom := max
	if denom < 1 {
		denom = 1
	}
	metrics.Consistency = 1.0 - float64(max-min)/float64(denom)
	return metrics
}

func analyzeCrossPlatformTiming(chronological []*evidence.Item) *CrossPlatformTiming {
	firstJira, lastJira, hasJira := platformBounds(chronological, evidence.PlatformJira)
	firstGitlab, lastGitlab, hasGitlab := platformBounds(chronological, evidence.PlatformGitLab)
	if !hasJira || !hasGitlab {
		return nil
	}

	lastActivity := lastGitlab
	if lastJira.After(lastActivity) {
		lastActivity = lastJira
	}

	return &CrossPlatformTiming{
		JiraToGitlabDelayDays:   firstGitlab.Sub(firstJira).Hours() / 24,
		DevelopmentDurationDays: lastGitlab.Sub(firstGitlab).Hours() / 24,
		TotalCycleTimeDays:      lastActivity.Sub(firstJira).Hours() / 24,
	}
}

// DetectPatterns derives cross-story work patterns: commit frequency, review
// cycle length, and ticket resolution time. Any pattern whose preconditions
// are not met is simply omitted.
func (t *TimelineAnalyzer) DetectPatterns(stories []*evidence.WorkStory) []*evidence.WorkPattern {
	var patterns []*evidence.WorkPattern
	if p := t.commitFrequencyPattern(stories); p != nil {
		patterns = append(patterns, p)
	}
	if p := t.reviewCyclePattern(stories); p != nil {
		patterns = append(patterns, p)
	}
	if p := t.ticketResolutionPattern(stories); p != nil {
		patterns = append(patterns, p)
	}
	return patterns
}

func (t *TimelineAnalyzer) commitFrequencyPattern(stories []*evidence.WorkStory) *evidence.WorkPattern {
	var gitlabItems []*evidence.Item
	for _, story := range stories {
		for _, item := range story.EvidenceItems {
			if item.Platform == evidence.PlatformGitLab {
				gitlabItems = append(gitlabItems, item)
			}
		}
	}
	if len(gitlabItems) == 0 {
		return nil
	}

	activeDays := map[string]int{}
	minDate := gitlabItems[0].EvidenceDate
	maxDate := gitlabItems[0].EvidenceDate
	for _, item := range gitlabItems {
		activeDays[item.EvidenceDate.Format("2006-01-02")]++
		if item.EvidenceDate.Before(minDate) {
			minDate = item.EvidenceDate
		}
		if item.EvidenceDate.After(maxDate) {
			maxDate = item.EvidenceDate
		}
	}

	total := 0
	for _, count := range activeDays {
		total += count
	}
	perDay := float64(total) / float64(len(activeDays))

	return &evidence.WorkPattern{
		PatternType:     "commit_frequency",
		Description:     fmt.Sprintf("Average %.1f commits per active day", perDay),
		Frequency:       perDay,
		ConfidenceScore: 0.8,
		EvidenceCount:   len(gitlabItems),
		PeriodStart:     minDate,
		PeriodEnd:       maxDate,
	}
}

func (t *TimelineAnalyzer) reviewCyclePattern(stories []*evidence.WorkStory) *evidence.WorkPattern {
	var cycles []float64
	evidenceCount := 0
	for _, story := range stories {
		var reviewItems []*evidence.Item
		for _, item := range story.EvidenceItems {
			if strings.Contains(item.Source, "merge_request") {
				reviewItems = append(reviewItems, item)
			}
		}
		if len(reviewItems) < 2 {
			continue
		}
		chronological := sortedByDate(reviewItems)
		span := chronological[len(chronological)-1].EvidenceDate.Sub(chronological[0].EvidenceDate)
		cycles = append(cycles, span.Hours()/24)
		evidenceCount += len(reviewItems)
	}
	if len(cycles) == 0 {
		return nil
	}

	avg := 0.0
	for _, c := range cycles {
		avg += c
	}
	avg /= float64(len(cycles))

	frequency := 0.0
	if avg > 0 {
		frequency = 1.0 / avg
	}

	now := t.now()
	return &evidence.WorkPattern{
		PatternType:     "review_cycle",
		Description:     fmt.Sprintf("Average review cycle of %.1f days", avg),
		Frequency:       frequency,
		ConfidenceScore: 0.7,
		EvidenceCount:   evidenceCount,
		PeriodStart:     now.AddDate(0, 0, -30),
		PeriodEnd:       now,
	}
}

func (t *TimelineAnalyzer) ticketResolutionPattern(stories []*evidence.WorkStory) *evidence.WorkPattern {
	var spans []float64
	evidenceCount := 0
	for _, story := range stories {
		var jiraItems []*evidence.Item
		for _, item := range story.EvidenceItems {
			if item.Platform == evidence.PlatformJira {
				jiraItems = append(jiraItems, item)
			}
		}
		if len(jiraItems) == 0 {
			continue
		}
		chronological := sortedByDate(jiraItems)
		span := chronological[len(chronological)-1].EvidenceDate.Sub(chronological[0].EvidenceDate)
		spans = append(spans, span.Hours()/24)
		evidenceCount += len(jiraItems)
	}
	if len(spans) == 0 {
		return nil
	}

	avg := 0.0
	for _, s := range spans {
		avg += s
	}
	avg /= float64(len(spans))

	frequency := 0.0
	if avg > 0 {
		frequency = 1.0 / avg
	}

	now := t.now()
	return &evidence.WorkPattern{
		PatternType:     "ticket_resolution",
		Description:     fmt.Sprintf("Average ticket resolution span of %.1f days", avg),
		Frequency:       frequency,
		ConfidenceScore: 0.6,
		EvidenceCount:   evidenceCount,
		PeriodStart:     now.AddDate(0, 0, -30),
		PeriodEnd:       now,
	}
}

// DetectSprints clusters all evidence by temporal density. A gap larger than
// the sprint gap threshold closes the current cluster; clusters below the
// minimum size are discarded.
func (t *TimelineAnalyzer) DetectSprints(items []*evidence.Item) []SprintCluster {
	if len(items) == 0 {
		return nil
	}

	chronological := sortedByDate(items)
	gap := time.Duration(t.cfg.SprintGapDays) * 24 * time.Hour

	var sprints []SprintCluster
	cluster := []*evidence.Item{chronological[0]}

	flush := func() {
		if len(cluster) < t.cfg.SprintMinItems {
			return
		}
		start := cluster[0].EvidenceDate
		end := cluster[len(cluster)-1].EvidenceDate
		sprints = append(sprints, SprintCluster{
			StartDate:    start,
			EndDate:      end,
			ItemCount:    len(cluster),
			DurationDays: math.Round(end.Sub(start).Hours()/24*100) / 100,
		})
	}

	for _, item := range chronological[1:] {
		if item.EvidenceDate.Sub(cluster[len(cluster)-1].EvidenceDate) > gap && len(cluster) >= t.cfg.SprintMinItems {
			flush()
			cluster = []*evidence.Item{item}
			continue
		}
		cluster = append(cluster, item)
	}
	flush()

	return sprints
}
