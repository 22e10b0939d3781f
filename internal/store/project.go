package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/softdesk/apiserver/types"
)

// Membership describes how a user relates to a project.
type Membership struct {
	AuthorID      int
	IsContributor bool
}

// ProjectRepository handles persistence for projects.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ListVisibleTo returns the projects userID authored or contributes to.
// The EXISTS predicate keeps each project once even when its author is also
// listed as a contributor.
func (r *ProjectRepository) ListVisibleTo(ctx context.Context, userID int) ([]types.Project, error) {
	const query = `
		SELECT p.id, p.title, p.description, p.type, p.author_id, p.created_at, p.updated_at
		FROM projects p
		WHERE p.author_id = $1
		   OR EXISTS (
				SELECT 1 FROM contributors c
				WHERE c.project_id = p.id AND c.user_id = $1
		   )
		ORDER BY p.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0)
	for rows.Next() {
		var project types.Project
		if err := rows.Scan(
			&project.ID,
			&project.Title,
			&project.Description,
			&project.Type,
			&project.AuthorID,
			&project.CreatedAt,
			&project.UpdatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachContributors(ctx, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id int) (types.Project, error) {
	const query = `
		SELECT id, title, description, type, author_id, created_at, updated_at
		FROM projects
		WHERE id = $1`
	var project types.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Title,
		&project.Description,
		&project.Type,
		&project.AuthorID,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}

	projects := []types.Project{project}
	if err := r.attachContributors(ctx, projects); err != nil {
		return types.Project{}, err
	}
	return projects[0], nil
}

// Membership resolves the project's author and whether userID is a contributor.
func (r *ProjectRepository) Membership(ctx context.Context, projectID, userID int) (Membership, error) {
	const query = `
		SELECT p.author_id,
		       EXISTS (
				SELECT 1 FROM contributors c
				WHERE c.project_id = p.id AND c.user_id = $2
		       )
		FROM projects p
		WHERE p.id = $1`
	var m Membership
	err := r.db.QueryRowContext(ctx, query, projectID, userID).Scan(&m.AuthorID, &m.IsContributor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Membership{}, ErrNotFound
		}
		return Membership{}, err
	}
	return m, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	project.Contributors = []int{}

	const query = `
		INSERT INTO projects (title, description, type, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		project.Title,
		project.Description,
		project.Type,
		project.AuthorID,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.ID); err != nil {
		return types.Project{}, translateError(err)
	}
	return project, nil
}

// Update writes the mutable fields. The author column is never touched.
func (r *ProjectRepository) Update(ctx context.Context, project types.Project) (types.Project, error) {
	project.UpdatedAt = time.Now()

	const query = `
		UPDATE projects
		SET title = $1,
			description = $2,
			type = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		project.Title,
		project.Description,
		project.Type,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return types.Project{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Project{}, err
	}
	if affected == 0 {
		return types.Project{}, ErrNotFound
	}
	return project, nil
}

// Delete removes the project together with its issues, comments, and
// contributor rows through ON DELETE CASCADE.
func (r *ProjectRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM projects WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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

func (r *ProjectRepository) attachContributors(ctx context.Context, projects []types.Project) error {
	if len(projects) == 0 {
		return nil
	}

	ids := make([]int64, len(projects))
	index := make(map[int]int, len(projects))
	for i := range projects {
		ids[i] = int64(projects[i].ID)
		index[projects[i].ID] = i
		projects[i].Contributors = []int{}
	}

	const query = `
		SELECT project_id, user_id
		FROM contributors
		WHERE project_id = ANY($1)
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var projectID, userID int
		if err := rows.Scan(&projectID, &userID); err != nil {
			return err
		}
		if i, ok := index[projectID]; ok {
			projects[i].Contributors = append(projects[i].Contributors, userID)
		}
	}
	return rows.Err()
}
