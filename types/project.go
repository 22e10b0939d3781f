package types

import "time"

// ProjectType classifies the platform a project targets.
type ProjectType string

// Supported project types.
const (
	ProjectTypeWeb     ProjectType = "WEB"
	ProjectTypeIOS     ProjectType = "IOS"
	ProjectTypeAndroid ProjectType = "ANDROID"
)

// Valid reports whether t is one of the supported project types.
func (t ProjectType) Valid() bool {
	switch t {
	case ProjectTypeWeb, ProjectTypeIOS, ProjectTypeAndroid:
		return true
	default:
		return false
	}
}

// Project is the root of the resource hierarchy. Issues belong to a project
// and comments belong to an issue, so access to everything below a project is
// decided by the project's author and contributors.
type Project struct {
	// ID is the unique identifier of the project.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the project.
	Title string `json:"title" db:"title"`

	// Description is a free-form summary of the project.
	Description string `json:"description" db:"description"`

	// Type is the platform targeted by the project.
	Type ProjectType `json:"type" db:"type"`

	// AuthorID identifies the user who created the project.
	// It is set once at creation and never reassigned.
	AuthorID int `json:"author" db:"author_id"`

	// Contributors lists the user IDs granted access to the project.
	// The author is not required to appear here.
	Contributors []int `json:"contributors" db:"-"`

	// CreatedAt is the timestamp at which the project was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the project.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Contributor links a user to a project they did not author.
type Contributor struct {
	ID        int         `json:"id" db:"id"`
	User      UserSummary `json:"user" db:"-"`
	ProjectID int         `json:"project" db:"project_id"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}
