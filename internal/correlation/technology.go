package correlation

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/worklens/backend/internal/evidence"
)

// TechnologyDetector identifies the technologies a story touched and scores
// its complexity from size, spread, vocabulary, and duration.
type TechnologyDetector struct {
	cfg Thresholds
}

func NewTechnologyDetector(cfg Thresholds) *TechnologyDetector {
	return &TechnologyDetector{cfg: cfg}
}

// Enrich fills in each story's technology stack and replaces the provisional
// complexity score with the full one.
func (d *TechnologyDetector) Enrich(stories []*evidence.WorkStory) {
	for _, story := range stories {
		story.TechnologyStack = d.DetectStack(story.EvidenceItems)
		story.ComplexityScore = d.complexityScore(story)
	}
}

// DetectStack extracts distinct technologies from file extensions, text
// mentions, and label metadata, sorted alphabetically.
func (d *TechnologyDetector) DetectStack(items []*evidence.Item) []string {
	found := map[string]bool{}

	for _, item := range items {
		for _, tech := range technologiesFromFiles(item) {
			found[tech] = true
		}
		for _, tech := range technologiesFromText(item.Title + " " + item.Description) {
			found[tech] = true
		}
		for _, tech := range technologiesFromLabels(item) {
			found[tech] = true
		}
	}

	stack := make([]string, 0, len(found))
	for tech := range found {
		stack = append(stack, tech)
	}
	sort.Strings(stack)
	return stack
}

func technologiesFromFiles(item *evidence.Item) []string {
	var techs []string
	for _, field := range fileMetadataFields {
		for _, path := range item.MetaStrings(field) {
			lower := strings.ToLower(path)
			for ext, tech := range technologyByExtension {
				if strings.HasSuffix(lower, ext) {
					techs = append(techs, tech)
				}
			}
		}
	}
	return techs
}

func technologiesFromText(text string) []string {
	lower := strings.ToLower(text)
	var techs []string
	for tech, patterns := range technologyMentionPatterns {
		for _, pattern := range patterns {
			if strings.Contains(lower, pattern) {
				techs = append(techs, tech)
				break
			}
		}
	}
	return techs
}

func technologiesFromLabels(item *evidence.Item) []string {
	var techs []string
	for _, field := range labelMetadataFields {
		for _, label := range item.MetaStrings(field) {
			techs = append(techs, technologiesFromText(label)...)
		}
	}
	return techs
}

// complexityScore combines evidence volume, technology breadth, platform
// spread, content vocabulary, and duration into a [0, 1] score.
func (d *TechnologyDetector) complexityScore(story *evidence.WorkStory) float64 {
	score := math.Min(float64(len(story.EvidenceItems))/10.0, 0.3)
	score += math.Min(float64(len(story.TechnologyStack))/5.0, 0.2)
	score += math.Min(float64(len(story.Platforms()))/3.0, 0.2)
	score += contentComplexity(story.EvidenceItems)

	if story.Duration != nil {
		days := story.Duration.Hours() / 24
		if days > float64(d.cfg.LongCycleDays) {
			score += 0.1
		} else if days < float64(d.cfg.QuickTurnDays) {
			score += 0.05
		}
	}

	return clampUnit(score)
}

// contentComplexity scans the combined story text, so each keyword counts
// at most once regardless of how many items mention it.
func contentComplexity(items []*evidence.Item) float64 {
	var combined strings.Builder
	for _, item := range items {
		combined.WriteString(strings.ToLower(item.Title))
		combined.WriteString(" ")
		combined.WriteString(strings.ToLower(item.Description))
		combined.WriteString(" ")
	}
	content := combined.String()

	score := 0.0
	for _, word := range highComplexityWords {
		if strings.Contains(content, word) {
			score += 0.05
		}
	}
	for _, word := range mediumComplexityWords {
		if strings.Contains(content, word) {
			score += 0.03
		}
	}
	for _, word := range lowComplexityWords {
		if strings.Contains(content, word) {
			score -= 0.02
		}
	}
	if score < 0 {
		return 0
	}
	if score > 0.3 {
		return 0.3
	}
	return score
}

// Insights summarizes technology usage across all stories, most used first.
func (d *TechnologyDetector) Insights(stories []*evidence.WorkStory) []evidence.TechnologyInsight {
	usage := map[string]int{}
	sources := map[string][]string{}
	firstSeen := map[string]time.Time{}
	lastSeen := map[string]time.Time{}
	var order []string

	for _, story := range stories {
		for _, tech := range story.TechnologyStack {
			if usage[tech] == 0 {
				order = append(order, tech)
			}
			usage[tech]++

			seen := map[string]bool{}
			for _, id := range sources[tech] {
				seen[id] = true
			}
			for _, item := range story.EvidenceItems {
				if !seen[item.ID] {
					seen[item.ID] = true
					sources[tech] = append(sources[tech], item.ID)
				}
				if first, ok := firstSeen[tech]; !ok || item.EvidenceDate.Before(first) {
					firstSeen[tech] = item.EvidenceDate
				}
				if last, ok := lastSeen[tech]; !ok || item.EvidenceDate.After(last) {
					lastSeen[tech] = item.EvidenceDate
				}
			}
		}
	}

	insights := make([]evidence.TechnologyInsight, 0, len(order))
	for _, tech := range order {
		insights = append(insights, evidence.TechnologyInsight{
			Technology:      tech,
			UsageCount:      usage[tech],
			ConfidenceScore: math.Min(float64(usage[tech])/10.0, 1.0),
			EvidenceSources: sources[tech],
			FirstSeen:       firstSeen[tech],
			LastSeen:        lastSeen[tech],
		})
	}
	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].UsageCount > insights[j].UsageCount
	})
	return insights
}

// Distribution counts each technology once per story that uses it.
func (d *TechnologyDetector) Distribution(stories []*evidence.WorkStory) map[string]int {
	distribution := map[string]int{}
	for _, story := range stories {
		for _, tech := range story.TechnologyStack {
			distribution[tech]++
		}
	}
	return distribution
}

// SkillLevel infers a rough proficiency for one technology from how often
// and in what context the items mention it.
func (d *TechnologyDetector) SkillLevel(tech string, items []*evidence.Item) string {
	lowerTech := strings.ToLower(tech)
	mentions := 0
	complex := false

	for _, item := range items {
		content := strings.ToLower(item.Title + " " + item.Description)
		if !strings.Contains(content, lowerTech) {
			continue
		}
		mentions++
		for _, word := range advancedUsageWords {
			if strings.Contains(content, word) {
				complex = true
				break
			}
		}
	}

	switch {
	case complex && mentions >= 3:
		return "advanced"
	case mentions >= 2 || complex:
		return "intermediate"
	default:
		return "beginner"
	}
}
