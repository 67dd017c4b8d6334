package correlation

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/worklens/backend/internal/evidence"
	"github.com/worklens/backend/pkg/logger"
)

// branchPatterns are the branch naming conventions that may carry an issue
// key. Kept as a data table so new conventions can be added without touching
// the detection logic.
var branchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`feature/([A-Z]{2,10}-\d+)`),
	regexp.MustCompile(`bugfix/([A-Z]{2,10}-\d+)`),
	regexp.MustCompile(`hotfix/([A-Z]{2,10}-\d+)`),
	regexp.MustCompile(`([A-Z]{2,10}-\d+)[-_]`),
	regexp.MustCompile(`([A-Z]{2,10}-\d+)$`),
}

var solveKeywords = []string{"fix", "fixes", "fixed", "resolve", "resolves", "resolved", "close", "closes", "closed"}

var referenceKeywords = []string{"ref", "refs", "reference", "references", "related", "see", "regarding"}

// Linker detects pairwise relationships between GitLab and JIRA evidence
// using three strategies in descending confidence order: issue-key
// references, branch-name patterns, and content-keyword similarity.
type Linker struct {
	cfg Thresholds
}

func NewLinker(cfg Thresholds) *Linker {
	return &Linker{cfg: cfg}
}

// Detect runs all strategies over every GitLab item against the JIRA side
// and collapses duplicate pairs to the highest-confidence instance.
func (l *Linker) Detect(gitlabItems, jiraItems []*evidence.Item) []*evidence.Relationship {
	if len(gitlabItems) == 0 || len(jiraItems) == 0 {
		return nil
	}

	logger.Debug("Detecting relationships",
		zap.Int("gitlab_items", len(gitlabItems)),
		zap.Int("jira_items", len(jiraItems)),
	)

	jiraKeyMap := buildJiraKeyMap(jiraItems)

	var relationships []*evidence.Relationship

	for _, gitlabItem := range gitlabItems {
		keyRels := l.detectIssueKeyReferences(gitlabItem, jiraKeyMap)
		relationships = append(relationships, keyRels...)

		branchRels := l.detectBranchNamePatterns(gitlabItem, jiraKeyMap)
		relationships = append(relationships, branchRels...)

		// Content similarity only when no direct reference was found.
		if len(keyRels) == 0 && len(branchRels) == 0 {
			relationships = append(relationships, l.detectContentSimilarity(gitlabItem, jiraItems)...)
		}
	}

	unique := deduplicateRelationships(relationships)

	logger.Debug("Relationship detection complete",
		zap.Int("detected", len(relationships)),
		zap.Int("unique", len(unique)),
	)

	return unique
}

// buildJiraKeyMap indexes JIRA items by their issue key, extracted from the
// title first, then a `key` metadata field, then the description.
func buildJiraKeyMap(jiraItems []*evidence.Item) map[string]*evidence.Item {
	keyMap := map[string]*evidence.Item{}
	for _, item := range jiraItems {
		if key := extractJiraKeyFromItem(item); key != "" {
			keyMap[key] = item
		}
	}
	return keyMap
}

func extractJiraKeyFromItem(item *evidence.Item) string {
	if m := jiraKeyPattern.FindStringSubmatch(item.Title); m != nil {
		return m[1]
	}
	if key := item.MetaString("key"); key != "" {
		return key
	}
	if m := jiraKeyPattern.FindStringSubmatch(item.Description); m != nil {
		return m[1]
	}
	return ""
}

func (l *Linker) detectIssueKeyReferences(gitlabItem *evidence.Item, jiraKeyMap map[string]*evidence.Item) []*evidence.Relationship {
	found := map[string]bool{}
	var orderedKeys []string

	collect := func(keys []string) {
		for _, key := range keys {
			if !found[key] {
				found[key] = true
				orderedKeys = append(orderedKeys, key)
			}
		}
	}

	collect(extractJiraKeys(gitlabItem.Title))
	collect(extractJiraKeys(gitlabItem.Description))
	if branch := gitlabItem.MetaString("branch_name"); branch != "" {
		collect(extractJiraKeys(branch))
	}

	var relationships []*evidence.Relationship
	for _, jiraKey := range orderedKeys {
		jiraItem, ok := jiraKeyMap[jiraKey]
		if !ok {
			continue
		}

		rel := evidence.NewRelationship(
			gitlabItem.ID,
			jiraItem.ID,
			determineRelationshipType(gitlabItem, jiraKey),
			l.cfg.IssueKeyConfidence,
			evidence.MethodIssueKey,
		)
		locations := referenceLocations(gitlabItem, jiraKey)
		summary := fmt.Sprintf("GitLab item references JIRA key %s", jiraKey)
		if len(locations) > 0 {
			summary += " in " + strings.Join(locations, ", ")
		}
		rel.EvidenceSummary = summary
		rel.Metadata["jira_key"] = jiraKey
		rel.Metadata["found_in"] = locations
		relationships = append(relationships, rel)
	}

	return relationships
}

// determineRelationshipType classifies the reference by scanning the GitLab
// item's combined text for solve/reference keywords co-occurring with the key.
func determineRelationshipType(gitlabItem *evidence.Item, jiraKey string) evidence.RelationshipType {
	content := strings.ToLower(gitlabItem.Title + " " + gitlabItem.Description)
	lowerKey := strings.ToLower(jiraKey)

	for _, keyword := range solveKeywords {
		if strings.Contains(content, keyword) && strings.Contains(content, lowerKey) {
			return evidence.RelSolves
		}
	}
	for _, keyword := range referenceKeywords {
		if strings.Contains(content, keyword) && strings.Contains(content, lowerKey) {
			return evidence.RelReferences
		}
	}
	return evidence.RelRelatedTo
}

func referenceLocations(gitlabItem *evidence.Item, jiraKey string) []string {
	var locations []string
	if strings.Contains(gitlabItem.Title, jiraKey) {
		locations = append(locations, "title")
	}
	if strings.Contains(gitlabItem.Description, jiraKey) {
		locations = append(locations, "description")
	}
	if strings.Contains(gitlabItem.MetaString("branch_name"), jiraKey) {
		locations = append(locations, "branch_name")
	}
	return locations
}

// detectBranchNamePatterns matches branch naming conventions against the
// JIRA key map. Issue-key detection already scans branch_name, so most of
// these come out as duplicates and are superseded by the higher-confidence
// issue-key relationship during deduplication; that overlap is intentional.
func (l *Linker) detectBranchNamePatterns(gitlabItem *evidence.Item, jiraKeyMap map[string]*evidence.Item) []*evidence.Relationship {
	branchName := gitlabItem.MetaString("branch_name")
	if branchName == "" {
		return nil
	}

	var relationships []*evidence.Relationship
	for _, pattern := range branchPatterns {
		for _, m := range pattern.FindAllStringSubmatch(branchName, -1) {
			jiraKey := m[1]
			jiraItem, ok := jiraKeyMap[jiraKey]
			if !ok {
				continue
			}

			rel := evidence.NewRelationship(
				gitlabItem.ID,
				jiraItem.ID,
				evidence.RelRelatedTo,
				l.cfg.BranchNameConfidence,
				evidence.MethodBranchName,
			)
			rel.EvidenceSummary = fmt.Sprintf("Branch name '%s' contains JIRA key %s", branchName, jiraKey)
			rel.Metadata["jira_key"] = jiraKey
			rel.Metadata["branch_name"] = branchName
			rel.Metadata["pattern_matched"] = pattern.String()
			relationships = append(relationships, rel)
		}
	}

	return relationships
}

func (l *Linker) detectContentSimilarity(gitlabItem *evidence.Item, jiraItems []*evidence.Item) []*evidence.Relationship {
	gitlabKeywords := extractKeywords(gitlabItem.Title + " " + gitlabItem.Description)

	var relationships []*evidence.Relationship
	for _, jiraItem := range jiraItems {
		jiraKeywords := extractKeywords(jiraItem.Title + " " + jiraItem.Description)

		similarity := jaccardSimilarity(gitlabKeywords, jiraKeywords)
		if similarity <= l.cfg.ContentSimilarityMin {
			continue
		}

		rel := evidence.NewRelationship(
			gitlabItem.ID,
			jiraItem.ID,
			evidence.RelRelatedTo,
			similarity*l.cfg.ContentConfidenceScale,
			evidence.MethodContentAnalysis,
		)
		rel.EvidenceSummary = fmt.Sprintf("Content similarity score: %.2f", similarity)
		rel.Metadata["similarity_score"] = similarity
		rel.Metadata["common_keywords"] = commonKeywords(gitlabKeywords, jiraKeywords)
		relationships = append(relationships, rel)
	}

	return relationships
}

// deduplicateRelationships keeps the highest-confidence relationship per
// unordered evidence pair, preserving first-seen order.
func deduplicateRelationships(relationships []*evidence.Relationship) []*evidence.Relationship {
	best := map[string]*evidence.Relationship{}
	var order []string

	for _, rel := range relationships {
		key := rel.PairKey()
		existing, ok := best[key]
		if !ok {
			best[key] = rel
			order = append(order, key)
		} else if rel.ConfidenceScore > existing.ConfidenceScore {
			best[key] = rel
		}
	}

	unique := make([]*evidence.Relationship, 0, len(order))
	for _, key := range order {
		unique = append(unique, best[key])
	}
	return unique
}
