package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/softdesk/apiserver/types"
)

const commentColumns = `
	c.id, c.description, c.issue_id, c.created_time, u.id, u.username`

// CommentRepository handles persistence for comments.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// ListByIssue returns the comments on issueID, oldest first.
func (r *CommentRepository) ListByIssue(ctx context.Context, issueID int) ([]types.Comment, error) {
	query := `
		SELECT` + commentColumns + `
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.issue_id = $1
		ORDER BY c.id`
	return r.list(ctx, query, issueID)
}

// ListByProject returns the comments on every issue of projectID.
func (r *CommentRepository) ListByProject(ctx context.Context, projectID int) ([]types.Comment, error) {
	query := `
		SELECT` + commentColumns + `
		FROM comments c
		JOIN issues i ON i.id = c.issue_id
		JOIN users u ON u.id = c.author_id
		WHERE i.project_id = $1
		ORDER BY c.id`
	return r.list(ctx, query, projectID)
}

// Get fetches a comment only when it belongs to issueID.
func (r *CommentRepository) Get(ctx context.Context, issueID, commentID int) (types.Comment, error) {
	query := `
		SELECT` + commentColumns + `
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id = $1 AND c.issue_id = $2`
	comment, err := scanComment(r.db.QueryRowContext(ctx, query, commentID, issueID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	comment.CreatedTime = time.Now()

	const query = `
		INSERT INTO comments (description, author_id, issue_id, created_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		comment.Description,
		comment.Author.ID,
		comment.IssueID,
		comment.CreatedTime,
	).Scan(&comment.ID); err != nil {
		return types.Comment{}, translateError(err)
	}
	return comment, nil
}

// Update rewrites the comment body. Issue and author stay as created.
func (r *CommentRepository) Update(ctx context.Context, comment types.Comment) (types.Comment, error) {
	const query = `UPDATE comments SET description = $1 WHERE id = $2 AND issue_id = $3`
	result, err := r.db.ExecContext(ctx, query, comment.Description, comment.ID, comment.IssueID)
	if err != nil {
		return types.Comment{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Comment{}, err
	}
	if affected == 0 {
		return types.Comment{}, ErrNotFound
	}
	return comment, nil
}

func (r *CommentRepository) Delete(ctx context.Context, issueID, commentID int) error {
	const query = `DELETE FROM comments WHERE id = $1 AND issue_id = $2`
	result, err := r.db.ExecContext(ctx, query, commentID, issueID)
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

func (r *CommentRepository) list(ctx context.Context, query string, arg int) ([]types.Comment, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]types.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

func scanComment(row rowScanner) (types.Comment, error) {
	var comment types.Comment
	err := row.Scan(
		&comment.ID,
		&comment.Description,
		&comment.IssueID,
		&comment.CreatedTime,
		&comment.Author.ID,
		&comment.Author.Username,
	)
	return comment, err
}
