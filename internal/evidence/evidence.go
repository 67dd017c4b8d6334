package evidence

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Platform string

const (
	PlatformGitLab   Platform = "gitlab"
	PlatformJira     Platform = "jira"
	PlatformDocument Platform = "document"
)

type DataSource string

const (
	DataSourceMCP    DataSource = "mcp"
	DataSourceAPI    DataSource = "api"
	DataSourceManual DataSource = "manual"
)

type Category string

const (
	CategoryTechnical     Category = "technical"
	CategoryCollaboration Category = "collaboration"
	CategoryDelivery      Category = "delivery"
)

// Item is one observed unit of developer activity, normalized from a
// platform-specific record by the collection layer. Items are never mutated
// by the correlation pipeline; stories and relationships reference them by id.
type Item struct {
	ID           string     `json:"id"`
	TeamMemberID string     `json:"team_member_id"`
	Platform     Platform   `json:"platform"`
	Source       string     `json:"source"`
	Category     Category   `json:"category"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	EvidenceDate time.Time  `json:"evidence_date"`
	SourceURL    string     `json:"source_url,omitempty"`
	DataSource   DataSource `json:"data_source"`
	FallbackUsed bool       `json:"fallback_used"`
	CreatedAt    time.Time  `json:"created_at"`

	// Metadata carries platform-specific fields (branch_name, author,
	// assignee, labels, files_changed, status, ...). Values are strings or
	// lists of strings; there is no fixed schema beyond those conventions.
	Metadata map[string]any `json:"metadata,omitempty"`
}

func NewItem(teamMemberID string, platform Platform, source string, category Category, title, description string, evidenceDate time.Time) *Item {
	return &Item{
		ID:           uuid.New().String(),
		TeamMemberID: teamMemberID,
		Platform:     platform,
		Source:       source,
		Category:     category,
		Title:        strings.TrimSpace(title),
		Description:  strings.TrimSpace(description),
		EvidenceDate: evidenceDate,
		DataSource:   DataSourceAPI,
		CreatedAt:    time.Now().UTC(),
		Metadata:     map[string]any{},
	}
}

// MetaString returns the metadata value for key when it is a non-empty string.
func (i *Item) MetaString(key string) string {
	if i.Metadata == nil {
		return ""
	}
	if v, ok := i.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetaStrings normalizes a metadata value into a string list. A plain string
// becomes a single-element list; anything else yields nil.
func (i *Item) MetaStrings(key string) []string {
	if i.Metadata == nil {
		return nil
	}
	switch v := i.Metadata[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		var out []string
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Validate checks the hard invariants: non-empty title and description after
// trimming, and an evidence date that is not in the future. Violations are
// reported, never auto-corrected.
func (i *Item) Validate(now time.Time) error {
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("evidence %s: title cannot be empty", i.ID)
	}
	if strings.TrimSpace(i.Description) == "" {
		return fmt.Errorf("evidence %s: description cannot be empty", i.ID)
	}
	if i.EvidenceDate.After(now) {
		return fmt.Errorf("evidence %s: evidence date cannot be in the future", i.ID)
	}
	return nil
}

// ValidationReport collects quality findings for one evidence item. Errors
// block correlation, warnings do not.
type ValidationReport struct {
	EvidenceID string   `json:"evidence_id"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

func (r ValidationReport) Valid() bool {
	return len(r.Errors) == 0
}

// Inspect runs the full quality checks on a single item: the hard invariants
// plus advisory warnings carried over from the collection layer's rules.
func Inspect(item *Item, now time.Time) ValidationReport {
	report := ValidationReport{EvidenceID: item.ID}

	if len(strings.TrimSpace(item.Title)) < 3 {
		report.Errors = append(report.Errors, "title must be at least 3 characters long")
	}
	if len(strings.TrimSpace(item.Description)) < 10 {
		report.Errors = append(report.Errors, "description must be at least 10 characters long")
	}
	if item.TeamMemberID == "" {
		report.Errors = append(report.Errors, "team_member_id is required")
	}
	if item.EvidenceDate.After(now) {
		report.Errors = append(report.Errors, "evidence date cannot be in the future")
	}

	if len(item.Title) <= len(item.Description) && strings.HasPrefix(item.Description, item.Title) {
		report.Warnings = append(report.Warnings, "title and description appear to be identical")
	}
	if item.SourceURL == "" {
		report.Warnings = append(report.Warnings, "no source URL provided - reduces traceability")
	}
	if item.EvidenceDate.Before(now.AddDate(-1, 0, 0)) {
		report.Warnings = append(report.Warnings, "evidence is more than 1 year old")
	}

	return report
}

// CollectionSummary aggregates shape statistics over an evidence list.
type CollectionSummary struct {
	TotalCount     int                `json:"total_count"`
	PlatformCounts map[Platform]int   `json:"platform_counts"`
	SourceCounts   map[DataSource]int `json:"source_counts"`
	CategoryCounts map[Category]int   `json:"category_counts"`
	EarliestDate   time.Time          `json:"earliest_date,omitempty"`
	LatestDate     time.Time          `json:"latest_date,omitempty"`
	FallbackUsage  int                `json:"fallback_usage"`
}

func Summarize(items []*Item) CollectionSummary {
	summary := CollectionSummary{
		TotalCount:     len(items),
		PlatformCounts: map[Platform]int{},
		SourceCounts:   map[DataSource]int{},
		CategoryCounts: map[Category]int{},
	}

	for _, item := range items {
		summary.PlatformCounts[item.Platform]++
		summary.SourceCounts[item.DataSource]++
		summary.CategoryCounts[item.Category]++
		if item.FallbackUsed {
			summary.FallbackUsage++
		}
		if summary.EarliestDate.IsZero() || item.EvidenceDate.Before(summary.EarliestDate) {
			summary.EarliestDate = item.EvidenceDate
		}
		if summary.LatestDate.IsZero() || item.EvidenceDate.After(summary.LatestDate) {
			summary.LatestDate = item.EvidenceDate
		}
	}

	return summary
}
