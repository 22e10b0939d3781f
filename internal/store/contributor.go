package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/softdesk/apiserver/types"
)

// ContributorRepository handles persistence for project contributors.
//
// Add and Remove run inside a transaction holding a row lock on the project,
// so the duplicate check and the write cannot interleave with a concurrent
// call for the same project. The (user_id, project_id) unique constraint
// backs this up at the storage layer.
type ContributorRepository struct {
	db *sql.DB
}

func NewContributorRepository(db *sql.DB) *ContributorRepository {
	return &ContributorRepository{db: db}
}

// Add links userID to projectID. It returns ErrNotFound when the project is
// gone, ErrInvalidReference when the user does not exist, and ErrConflict
// when the user already contributes to the project.
func (r *ContributorRepository) Add(ctx context.Context, projectID, userID int) (types.Contributor, error) {
	var contributor types.Contributor
	err := r.withProjectLock(ctx, projectID, func(tx *sql.Tx) error {
		const userQuery = `SELECT id, username FROM users WHERE id = $1`
		if err := tx.QueryRowContext(ctx, userQuery, userID).Scan(
			&contributor.User.ID,
			&contributor.User.Username,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInvalidReference
			}
			return err
		}

		const insertQuery = `
			INSERT INTO contributors (user_id, project_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, project_id) DO NOTHING
			RETURNING id`
		contributor.ProjectID = projectID
		contributor.CreatedAt = time.Now()
		err := tx.QueryRowContext(ctx, insertQuery, userID, projectID, contributor.CreatedAt).Scan(&contributor.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrConflict
			}
			return translateError(err)
		}
		return nil
	})
	if err != nil {
		return types.Contributor{}, err
	}
	return contributor, nil
}

// Remove unlinks userID from projectID, returning ErrNotFound when no
// contributor row exists for the pair.
func (r *ContributorRepository) Remove(ctx context.Context, projectID, userID int) error {
	return r.withProjectLock(ctx, projectID, func(tx *sql.Tx) error {
		const query = `DELETE FROM contributors WHERE project_id = $1 AND user_id = $2`
		result, err := tx.ExecContext(ctx, query, projectID, userID)
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
	})
}

// ListByProject returns the project's contributors in insertion order.
func (r *ContributorRepository) ListByProject(ctx context.Context, projectID int) ([]types.Contributor, error) {
	const query = `
		SELECT c.id, c.project_id, c.created_at, u.id, u.username
		FROM contributors c
		JOIN users u ON u.id = c.user_id
		WHERE c.project_id = $1
		ORDER BY c.id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contributors := make([]types.Contributor, 0)
	for rows.Next() {
		var c types.Contributor
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.CreatedAt, &c.User.ID, &c.User.Username); err != nil {
			return nil, err
		}
		contributors = append(contributors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contributors, nil
}

func (r *ContributorRepository) withProjectLock(ctx context.Context, projectID int, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const lockQuery = `SELECT id FROM projects WHERE id = $1 FOR UPDATE`
	var lockedID int
	if err = tx.QueryRowContext(ctx, lockQuery, projectID).Scan(&lockedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return err
	}

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
