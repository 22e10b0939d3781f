package types

import "time"

// Comment is a message attached to an issue.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID int `json:"id" db:"id"`

	// Description is the comment body.
	Description string `json:"description" db:"description"`

	// IssueID identifies the issue the comment belongs to.
	// It is bound from the request path and never changes.
	IssueID int `json:"issue" db:"issue_id"`

	// Author is the user who wrote the comment.
	Author UserSummary `json:"author" db:"-"`

	// CreatedTime is the timestamp at which the comment was posted.
	CreatedTime time.Time `json:"created_time" db:"created_time"`
}
