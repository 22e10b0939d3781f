package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/softdesk/apiserver/types"
)

const issueColumns = `
	i.id, i.title, i.description, i.priority, i.tag, i.status,
	i.project_id, i.created_time, u.id, u.username`

// IssueRepository handles persistence for issues.
type IssueRepository struct {
	db *sql.DB
}

func NewIssueRepository(db *sql.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// ListByProject returns the issues filed against projectID, oldest first.
func (r *IssueRepository) ListByProject(ctx context.Context, projectID int) ([]types.Issue, error) {
	query := `
		SELECT` + issueColumns + `
		FROM issues i
		JOIN users u ON u.id = i.author_id
		WHERE i.project_id = $1
		ORDER BY i.id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := make([]types.Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return issues, nil
}

// Get fetches an issue only when it belongs to projectID.
func (r *IssueRepository) Get(ctx context.Context, projectID, issueID int) (types.Issue, error) {
	query := `
		SELECT` + issueColumns + `
		FROM issues i
		JOIN users u ON u.id = i.author_id
		WHERE i.id = $1 AND i.project_id = $2`
	issue, err := scanIssue(r.db.QueryRowContext(ctx, query, issueID, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Issue{}, ErrNotFound
		}
		return types.Issue{}, err
	}
	return issue, nil
}

func (r *IssueRepository) Create(ctx context.Context, issue types.Issue) (types.Issue, error) {
	issue.CreatedTime = time.Now()

	const query = `
		INSERT INTO issues (title, description, priority, tag, status, project_id, author_id, created_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		issue.Title,
		issue.Description,
		issue.Priority,
		issue.Tag,
		issue.Status,
		issue.ProjectID,
		issue.Author.ID,
		issue.CreatedTime,
	).Scan(&issue.ID); err != nil {
		return types.Issue{}, translateError(err)
	}
	return issue, nil
}

// Update writes the mutable fields. Project and author stay as created.
func (r *IssueRepository) Update(ctx context.Context, issue types.Issue) (types.Issue, error) {
	const query = `
		UPDATE issues
		SET title = $1,
			description = $2,
			priority = $3,
			tag = $4,
			status = $5
		WHERE id = $6 AND project_id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		issue.Title,
		issue.Description,
		issue.Priority,
		issue.Tag,
		issue.Status,
		issue.ID,
		issue.ProjectID,
	)
	if err != nil {
		return types.Issue{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Issue{}, err
	}
	if affected == 0 {
		return types.Issue{}, ErrNotFound
	}
	return issue, nil
}

func (r *IssueRepository) Delete(ctx context.Context, projectID, issueID int) error {
	const query = `DELETE FROM issues WHERE id = $1 AND project_id = $2`
	result, err := r.db.ExecContext(ctx, query, issueID, projectID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (types.Issue, error) {
	var issue types.Issue
	err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&issue.Priority,
		&issue.Tag,
		&issue.Status,
		&issue.ProjectID,
		&issue.CreatedTime,
		&issue.Author.ID,
		&issue.Author.Username,
	)
	return issue, err
}
