package types

import "time"

// IssuePriority ranks how urgent an issue is.
type IssuePriority string

// Supported issue priorities.
const (
	PriorityLow    IssuePriority = "FAIBLE"
	PriorityMedium IssuePriority = "MOYEN"
	PriorityHigh   IssuePriority = "ELEVEE"
)

// Valid reports whether p is a supported priority.
func (p IssuePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// IssueTag categorizes the kind of work an issue describes.
type IssueTag string

// Supported issue tags.
const (
	TagBug         IssueTag = "BUG"
	TagImprovement IssueTag = "AMELIORATION"
	TagTask        IssueTag = "TACHE"
)

// Valid reports whether t is a supported tag.
func (t IssueTag) Valid() bool {
	switch t {
	case TagBug, TagImprovement, TagTask:
		return true
	default:
		return false
	}
}

// IssueStatus tracks the progress of an issue.
type IssueStatus string

// Supported issue statuses.
const (
	StatusTodo       IssueStatus = "A_FAIRE"
	StatusInProgress IssueStatus = "EN_COURS"
	StatusDone       IssueStatus = "TERMINE"
)

// Valid reports whether s is a supported status.
func (s IssueStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// Issue is a unit of work filed against a project.
type Issue struct {
	// ID is the unique identifier of the issue.
	ID int `json:"id" db:"id"`

	// Title is a short summary of the issue.
	Title string `json:"title" db:"title"`

	// Description holds the full issue text.
	Description string `json:"description" db:"description"`

	// Priority ranks the issue's urgency.
	Priority IssuePriority `json:"priority" db:"priority"`

	// Tag categorizes the issue.
	Tag IssueTag `json:"tag" db:"tag"`

	// Status tracks the issue's progress.
	Status IssueStatus `json:"status" db:"status"`

	// ProjectID identifies the project the issue was filed against.
	// It is bound from the request path and never changes.
	ProjectID int `json:"project" db:"project_id"`

	// Author is the user who filed the issue.
	Author UserSummary `json:"author" db:"-"`

	// CreatedTime is the timestamp at which the issue was filed.
	CreatedTime time.Time `json:"created_time" db:"created_time"`
}
