package evidence

import (
	"time"

	"github.com/google/uuid"
)

type StoryStatus string

const (
	StatusInProgress StoryStatus = "in_progress"
	StatusCompleted  StoryStatus = "completed"
	StatusBlocked    StoryStatus = "blocked"
	StatusCancelled  StoryStatus = "cancelled"
	StatusUnknown    StoryStatus = "unknown"
)

// WorkStory is a cluster of evidence items believed to represent one coherent
// piece of work. It is built once per correlation run and enriched in place
// by the timeline analyzer and technology detector.
type WorkStory struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	EvidenceItems []*Item         `json:"evidence_items"`
	Relationships []*Relationship `json:"relationships"`

	PrimaryJiraTicket string   `json:"primary_jira_ticket,omitempty"`
	PrimaryPlatform   Platform `json:"primary_platform,omitempty"`

	// Timeline holds named instants: start, end, first/last per-platform
	// activity, plus keys the timeline analyzer adds later.
	Timeline map[string]time.Time `json:"timeline,omitempty"`
	Duration *time.Duration       `json:"duration,omitempty"`

	TechnologyStack []string `json:"technology_stack,omitempty"`

	// ComplexityScore is provisional after grouping; the technology detector
	// overwrites it with the final value during enrichment.
	ComplexityScore float64 `json:"complexity_score"`

	TeamMembersInvolved []string    `json:"team_members_involved,omitempty"`
	Status              StoryStatus `json:"status"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewWorkStory(title string) *WorkStory {
	now := time.Now().UTC()
	return &WorkStory{
		ID:        uuid.New().String(),
		Title:     title,
		Timeline:  map[string]time.Time{},
		Status:    StatusUnknown,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
	}
}

func (s *WorkStory) EvidenceCount() int {
	return len(s.EvidenceItems)
}

// Platforms returns the distinct platforms present among the story's items.
func (s *WorkStory) Platforms() []Platform {
	seen := map[Platform]bool{}
	var out []Platform
	for _, item := range s.EvidenceItems {
		if !seen[item.Platform] {
			seen[item.Platform] = true
			out = append(out, item.Platform)
		}
	}
	return out
}

// ConfidenceScore is the mean confidence of the story's relationships,
// 0.0 when the story has none (orphan stories).
func (s *WorkStory) ConfidenceScore() float64 {
	if len(s.Relationships) == 0 {
		return 0.0
	}
	var total float64
	for _, rel := range s.Relationships {
		total += rel.ConfidenceScore
	}
	return total / float64(len(s.Relationships))
}
