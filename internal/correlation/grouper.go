package correlation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/worklens/backend/internal/evidence"
	"github.com/worklens/backend/pkg/logger"
)

var completedStatuses = map[string]bool{
	"done": true, "closed": true, "resolved": true, "completed": true,
}

var blockedStatuses = map[string]bool{
	"blocked": true, "on hold": true,
}

var activeStatuses = map[string]bool{
	"in progress": true, "in review": true, "in development": true,
}

// Grouper assembles related evidence into work stories by finding connected
// components over the relationship graph, then builds standalone stories from
// the leftover items where possible.
type Grouper struct {
	cfg Thresholds
	now func() time.Time
}

func NewGrouper(cfg Thresholds) *Grouper {
	return &Grouper{cfg: cfg, now: time.Now}
}

// Group clusters items into stories. Relationships below the grouping
// confidence floor do not contribute edges. Stories come back sorted by
// evidence count then complexity, truncated to maxStories.
func (g *Grouper) Group(items []*evidence.Item, relationships []*evidence.Relationship, minEvidence, maxStories int) []*evidence.WorkStory {
	if len(items) == 0 {
		return nil
	}

	itemsByID := map[string]*evidence.Item{}
	for _, item := range items {
		itemsByID[item.ID] = item
	}

	adjacency := map[string][]string{}
	relsByPair := map[string][]*evidence.Relationship{}
	for _, rel := range relationships {
		if rel.ConfidenceScore < g.cfg.GroupingConfidenceMin {
			continue
		}
		// Edges referencing unknown items are dropped.
		if itemsByID[rel.PrimaryEvidenceID] == nil || itemsByID[rel.RelatedEvidenceID] == nil {
			continue
		}
		adjacency[rel.PrimaryEvidenceID] = append(adjacency[rel.PrimaryEvidenceID], rel.RelatedEvidenceID)
		adjacency[rel.RelatedEvidenceID] = append(adjacency[rel.RelatedEvidenceID], rel.PrimaryEvidenceID)
		relsByPair[rel.PairKey()] = append(relsByPair[rel.PairKey()], rel)
	}

	visited := map[string]bool{}
	grouped := map[string]bool{}
	var stories []*evidence.WorkStory

	for _, item := range items {
		if visited[item.ID] {
			continue
		}
		component := collectComponent(item.ID, adjacency, visited)
		if len(component) < minEvidence {
			continue
		}

		componentItems := make([]*evidence.Item, 0, len(component))
		for _, id := range component {
			componentItems = append(componentItems, itemsByID[id])
			grouped[id] = true
		}
		stories = append(stories, g.buildStory(componentItems, componentRelationships(component, relsByPair)))
	}

	var orphans []*evidence.Item
	for _, item := range items {
		if !grouped[item.ID] {
			orphans = append(orphans, item)
		}
	}
	stories = append(stories, g.groupOrphans(orphans, minEvidence)...)

	sort.SliceStable(stories, func(i, j int) bool {
		if stories[i].EvidenceCount() != stories[j].EvidenceCount() {
			return stories[i].EvidenceCount() > stories[j].EvidenceCount()
		}
		return stories[i].ComplexityScore > stories[j].ComplexityScore
	})
	if len(stories) > maxStories {
		stories = stories[:maxStories]
	}

	logger.Debug("Grouped evidence into stories",
		zap.Int("items", len(items)),
		zap.Int("stories", len(stories)),
		zap.Int("orphans", len(orphans)),
	)

	return stories
}

// collectComponent walks the connected component containing start with an
// iterative depth-first search.
func collectComponent(start string, adjacency map[string][]string, visited map[string]bool) []string {
	var component []string
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		component = append(component, id)
		for _, neighbor := range adjacency[id] {
			if !visited[neighbor] {
				stack = append(stack, neighbor)
			}
		}
	}
	return component
}

func componentRelationships(component []string, relsByPair map[string][]*evidence.Relationship) []*evidence.Relationship {
	inComponent := map[string]bool{}
	for _, id := range component {
		inComponent[id] = true
	}
	var rels []*evidence.Relationship
	for _, group := range relsByPair {
		for _, rel := range group {
			if inComponent[rel.PrimaryEvidenceID] && inComponent[rel.RelatedEvidenceID] {
				rels = append(rels, rel)
			}
		}
	}
	sort.SliceStable(rels, func(i, j int) bool { return rels[i].DetectedAt.Before(rels[j].DetectedAt) })
	return rels
}

func (g *Grouper) buildStory(items []*evidence.Item, relationships []*evidence.Relationship) *evidence.WorkStory {
	chronological := sortedByDate(items)

	story := evidence.NewWorkStory(storyTitle(items, relationships))
	story.EvidenceItems = items
	story.Relationships = relationships
	story.PrimaryJiraTicket = primaryJiraTicket(items, relationships)
	story.Description = storyDescription(items, relationships)
	story.PrimaryPlatform = modalPlatform(items)
	story.TeamMembersInvolved = teamMembers(items)
	story.Status = g.determineStatus(items)

	start := chronological[0].EvidenceDate
	end := chronological[len(chronological)-1].EvidenceDate
	story.Timeline["start"] = start
	story.Timeline["end"] = end
	duration := end.Sub(start)
	story.Duration = &duration

	for _, platform := range []evidence.Platform{evidence.PlatformGitLab, evidence.PlatformJira} {
		first, last, ok := platformBounds(chronological, platform)
		if ok {
			story.Timeline["first_"+string(platform)+"_activity"] = first
			story.Timeline["last_"+string(platform)+"_activity"] = last
		}
	}

	story.ComplexityScore = provisionalComplexity(items)
	return story
}

func sortedByDate(items []*evidence.Item) []*evidence.Item {
	sorted := make([]*evidence.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EvidenceDate.Before(sorted[j].EvidenceDate)
	})
	return sorted
}

func platformBounds(chronological []*evidence.Item, platform evidence.Platform) (first, last time.Time, ok bool) {
	for _, item := range chronological {
		if item.Platform != platform {
			continue
		}
		if !ok {
			first = item.EvidenceDate
			ok = true
		}
		last = item.EvidenceDate
	}
	return first, last, ok
}

// primaryJiraTicket prefers the target of a solves relationship, falling back
// to the first JIRA item with an extractable key.
func primaryJiraTicket(items []*evidence.Item, relationships []*evidence.Relationship) string {
	itemsByID := map[string]*evidence.Item{}
	for _, item := range items {
		itemsByID[item.ID] = item
	}

	for _, rel := range relationships {
		if rel.Type != evidence.RelSolves {
			continue
		}
		related := itemsByID[rel.RelatedEvidenceID]
		if related != nil && related.Platform == evidence.PlatformJira {
			if key := extractJiraKeyFromItem(related); key != "" {
				return key
			}
		}
	}

	for _, item := range items {
		if item.Platform == evidence.PlatformJira {
			if key := extractJiraKeyFromItem(item); key != "" {
				return key
			}
		}
	}
	return ""
}

func storyTitle(items []*evidence.Item, relationships []*evidence.Relationship) string {
	if key := primaryJiraTicket(items, relationships); key != "" {
		for _, item := range items {
			if item.Platform == evidence.PlatformJira && strings.Contains(item.Title, key) {
				return item.Title
			}
		}
	}

	longest := ""
	for _, item := range items {
		if len(item.Title) > len(longest) {
			longest = item.Title
		}
	}
	if longest != "" {
		return longest
	}
	return "Work Story"
}

func storyDescription(items []*evidence.Item, relationships []*evidence.Relationship) string {
	platforms := map[evidence.Platform]bool{}
	for _, item := range items {
		platforms[item.Platform] = true
	}

	description := fmt.Sprintf("Work story involving %d evidence items across %d platforms.", len(items), len(platforms))

	typeSet := map[evidence.RelationshipType]bool{}
	var types []string
	for _, rel := range relationships {
		if !typeSet[rel.Type] {
			typeSet[rel.Type] = true
			types = append(types, string(rel.Type))
		}
	}
	if len(types) > 0 {
		description += fmt.Sprintf(" Relationship types: %s.", strings.Join(types, ", "))
	}
	return description
}

func modalPlatform(items []*evidence.Item) evidence.Platform {
	counts := map[evidence.Platform]int{}
	var order []evidence.Platform
	for _, item := range items {
		if counts[item.Platform] == 0 {
			order = append(order, item.Platform)
		}
		counts[item.Platform]++
	}
	var best evidence.Platform
	bestCount := 0
	for _, platform := range order {
		if counts[platform] > bestCount {
			best = platform
			bestCount = counts[platform]
		}
	}
	return best
}

func teamMembers(items []*evidence.Item) []string {
	seen := map[string]bool{}
	var members []string
	for _, item := range items {
		for _, field := range []string{"author", "assignee", "reporter", "created_by"} {
			if v := item.MetaString(field); v != "" && !seen[v] {
				seen[v] = true
				members = append(members, v)
			}
		}
	}
	return members
}

// determineStatus reads JIRA status metadata first; with no usable status the
// story counts as in progress when anything happened inside the recent
// activity window.
func (g *Grouper) determineStatus(items []*evidence.Item) evidence.StoryStatus {
	for _, item := range items {
		if item.Platform != evidence.PlatformJira {
			continue
		}
		status := strings.ToLower(item.MetaString("status"))
		switch {
		case completedStatuses[status]:
			return evidence.StatusCompleted
		case blockedStatuses[status]:
			return evidence.StatusBlocked
		case activeStatuses[status]:
			return evidence.StatusInProgress
		}
	}

	cutoff := g.now().AddDate(0, 0, -g.cfg.RecentActivityWindowDays)
	for _, item := range items {
		if item.EvidenceDate.After(cutoff) {
			return evidence.StatusInProgress
		}
	}
	return evidence.StatusUnknown
}

// provisionalComplexity is a first-pass estimate from size and platform
// spread. The technology detector replaces it with a richer score when
// technology enrichment runs.
func provisionalComplexity(items []*evidence.Item) float64 {
	platforms := map[evidence.Platform]bool{}
	for _, item := range items {
		platforms[item.Platform] = true
	}
	score := math.Min(float64(len(items))/10.0, 1.0)
	score += float64(len(platforms)-1) * 0.2
	return math.Min(score, 1.0)
}

// groupOrphans clusters ungrouped items greedily by platform and temporal
// proximity to the cluster seed.
func (g *Grouper) groupOrphans(orphans []*evidence.Item, minEvidence int) []*evidence.WorkStory {
	var stories []*evidence.WorkStory
	used := map[string]bool{}
	window := time.Duration(g.cfg.OrphanWindowDays) * 24 * time.Hour

	for _, seed := range orphans {
		if used[seed.ID] {
			continue
		}
		cluster := []*evidence.Item{seed}
		used[seed.ID] = true

		for _, candidate := range orphans {
			if used[candidate.ID] {
				continue
			}
			if candidate.Platform != seed.Platform {
				continue
			}
			gap := candidate.EvidenceDate.Sub(seed.EvidenceDate)
			if gap < 0 {
				gap = -gap
			}
			if gap <= window {
				cluster = append(cluster, candidate)
				used[candidate.ID] = true
			}
		}

		if len(cluster) >= minEvidence {
			stories = append(stories, g.buildOrphanStory(cluster))
		}
	}
	return stories
}

func (g *Grouper) buildOrphanStory(cluster []*evidence.Item) *evidence.WorkStory {
	story := g.buildStory(cluster, nil)
	title := cluster[0].Title
	if len(title) > 50 {
		title = title[:50] + "..."
	}
	story.Title = "Individual Work: " + title
	story.Description = fmt.Sprintf("Standalone work with %d evidence items", len(cluster))
	return story
}
