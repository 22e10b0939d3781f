package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/softdesk/apiserver/internal/access"
	"github.com/softdesk/apiserver/internal/archive"
	"github.com/softdesk/apiserver/internal/events"
	"github.com/softdesk/apiserver/internal/store"
	"github.com/softdesk/apiserver/types"
)

const (
	maxProjectTitleLength       = 200
	maxProjectDescriptionLength = 2048
)

// ProjectFields holds the writable project fields of a create or update
// request. Nil means the field was not sent.
type ProjectFields struct {
	Title       *string
	Description *string
	Type        *types.ProjectType
}

// apply copies the sent fields onto p. Unless partial, every field must be sent.
func (f ProjectFields) apply(p *types.Project, partial bool) error {
	verr := &ValidationError{}
	if f.Title != nil {
		p.Title = strings.TrimSpace(*f.Title)
	} else if !partial {
		verr.Add("title", msgRequired)
	}
	if f.Description != nil {
		p.Description = strings.TrimSpace(*f.Description)
	} else if !partial {
		verr.Add("description", msgRequired)
	}
	if f.Type != nil {
		p.Type = *f.Type
	} else if !partial {
		verr.Add("type", msgRequired)
	}

	checkText(verr, "title", p.Title, maxProjectTitleLength)
	checkText(verr, "description", p.Description, maxProjectDescriptionLength)
	if !p.Type.Valid() {
		verr.Add("type", invalidChoice(string(p.Type)))
	}
	return verr.Err()
}

// ProjectService encapsulates project and contributor use-cases.
type ProjectService struct {
	projects     ProjectRepository
	contributors ContributorRepository
	issues       IssueRepository
	comments     CommentRepository
	archiver     ProjectArchiver
	notifier
}

func NewProjectService(deps Deps) *ProjectService {
	deps = deps.withDefaults()
	return &ProjectService{
		projects:     deps.Projects,
		contributors: deps.Contributors,
		issues:       deps.Issues,
		comments:     deps.Comments,
		archiver:     deps.Archiver,
		notifier:     newNotifier(deps),
	}
}

// List returns the projects the actor authored or contributes to.
func (s *ProjectService) List(ctx context.Context, actor types.UserSummary) ([]types.Project, error) {
	if actor.ID < 1 {
		return nil, access.ErrUnauthenticated
	}
	return s.projects.ListVisibleTo(ctx, actor.ID)
}

func (s *ProjectService) Get(ctx context.Context, actor types.UserSummary, projectID int) (types.Project, error) {
	role, err := projectRole(ctx, s.projects, projectID, actor)
	if err != nil {
		return types.Project{}, err
	}
	if err := access.Authorize(access.ResourceProject, access.ActionRetrieve, role); err != nil {
		return types.Project{}, err
	}
	return s.load(ctx, projectID)
}

// Create stores a new project authored by the actor.
func (s *ProjectService) Create(ctx context.Context, actor types.UserSummary, fields ProjectFields) (types.Project, error) {
	if err := access.Authorize(access.ResourceProject, access.ActionCreate, access.RoleOf(actor.ID, 0, false)); err != nil {
		return types.Project{}, err
	}

	project := types.Project{AuthorID: actor.ID}
	if err := fields.apply(&project, false); err != nil {
		return types.Project{}, err
	}

	created, err := s.projects.Create(ctx, project)
	if err != nil {
		return types.Project{}, fmt.Errorf("create project: %w", err)
	}
	s.publish(ctx, events.Event{Type: events.ProjectCreated, ActorID: actor.ID, ProjectID: created.ID})
	return created, nil
}

// Update replaces (partial=false) or patches (partial=true) the project.
// The author is never changed.
func (s *ProjectService) Update(ctx context.Context, actor types.UserSummary, projectID int, fields ProjectFields, partial bool) (types.Project, error) {
	role, err := projectRole(ctx, s.projects, projectID, actor)
	if err != nil {
		return types.Project{}, err
	}
	if err := access.Authorize(access.ResourceProject, access.ActionUpdate, role); err != nil {
		return types.Project{}, err
	}

	project, err := s.load(ctx, projectID)
	if err != nil {
		return types.Project{}, err
	}
	if err := fields.apply(&project, partial); err != nil {
		return types.Project{}, err
	}

	updated, err := s.projects.Update(ctx, project)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Project{}, notFound(access.ResourceProject)
		}
		return types.Project{}, fmt.Errorf("update project %d: %w", projectID, err)
	}
	s.publish(ctx, events.Event{Type: events.ProjectUpdated, ActorID: actor.ID, ProjectID: projectID})
	return updated, nil
}

// Delete archives the project, when an archiver is configured, and then
// removes it with its issues, comments, and contributors. An archive failure
// leaves the project in place.
func (s *ProjectService) Delete(ctx context.Context, actor types.UserSummary, projectID int) error {
	role, err := projectRole(ctx, s.projects, projectID, actor)
	if err != nil {
		return err
	}
	if err := access.Authorize(access.ResourceProject, access.ActionDelete, role); err != nil {
		return err
	}

	var archiveKey string
	if s.archiver != nil {
		snapshot, err := s.snapshot(ctx, projectID)
		if err != nil {
			return err
		}
		snapshot.ArchivedBy = actor.ID
		archiveKey, err = s.archiver.Archive(ctx, snapshot)
		if err != nil {
			return fmt.Errorf("archive project %d: %w", projectID, err)
		}
	}

	if err := s.projects.Delete(ctx, projectID); err != nil {
		if archiveKey != "" {
			if discardErr := s.archiver.Discard(ctx, archiveKey); discardErr != nil {
				s.log.WithError(discardErr).WithField("key", archiveKey).Warn("failed to discard project archive")
			}
		}
		if errors.Is(err, store.ErrNotFound) {
			return notFound(access.ResourceProject)
		}
		return fmt.Errorf("delete project %d: %w", projectID, err)
	}

	s.publish(ctx, events.Event{
		Type:       events.ProjectDeleted,
		ActorID:    actor.ID,
		ProjectID:  projectID,
		ArchiveKey: archiveKey,
	})
	return nil
}

// Contributors lists the members of a project visible to the actor.
func (s *ProjectService) Contributors(ctx context.Context, actor types.UserSummary, projectID int) ([]types.Contributor, error) {
	role, err := projectRole(ctx, s.projects, projectID, actor)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(access.ResourceProject, access.ActionRetrieve, role); err != nil {
		return nil, err
	}
	return s.contributors.ListByProject(ctx, projectID)
}

// AddContributor grants userID access to the project. Only the project's
// author may do this.
func (s *ProjectService) AddContributor(ctx context.Context, actor types.UserSummary, projectID, userID int) (types.Contributor, error) {
	role, err := projectRole(ctx, s.projects, projectID, actor)
	if err != nil {
		return types.Contributor{}, err
	}
	if err := access.Authorize(access.ResourceProject, access.ActionAddContributor, role); err != nil {
		return types.Contributor{}, err
	}
	if userID < 1 {
		return types.Contributor{}, fieldError("user_id", msgRequired)
	}

	contributor, err := s.contributors.Add(ctx, projectID, userID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidReference):
			return types.Contributor{}, fieldError("user_id", "unknown user")
		case errors.Is(err, store.ErrConflict):
			return types.Contributor{}, ErrAlreadyContributor
		case errors.Is(err, store.ErrNotFound):
			return types.Contributor{}, notFound(access.ResourceProject)
		default:
			return types.Contributor{}, fmt.Errorf("add contributor to project %d: %w", projectID, err)
		}
	}

	s.publish(ctx, events.Event{
		Type:      events.ContributorAdded,
		ActorID:   actor.ID,
		ProjectID: projectID,
		UserID:    userID,
	})
	return contributor, nil
}

// RemoveContributor revokes userID's access. Only the project's author may
// do this.
func (s *ProjectService) RemoveContributor(ctx context.Context, actor types.UserSummary, projectID, userID int) error {
	role, err := projectRole(ctx, s.projects, projectID, actor)
	if err != nil {
		return err
	}
	if err := access.Authorize(access.ResourceProject, access.ActionRemoveContributor, role); err != nil {
		return err
	}

	if err := s.contributors.Remove(ctx, projectID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("contributor %w", store.ErrNotFound)
		}
		return fmt.Errorf("remove contributor from project %d: %w", projectID, err)
	}

	s.publish(ctx, events.Event{
		Type:      events.ContributorRemoved,
		ActorID:   actor.ID,
		ProjectID: projectID,
		UserID:    userID,
	})
	return nil
}

func (s *ProjectService) load(ctx context.Context, projectID int) (types.Project, error) {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Project{}, notFound(access.ResourceProject)
		}
		return types.Project{}, fmt.Errorf("load project %d: %w", projectID, err)
	}
	return project, nil
}

func (s *ProjectService) snapshot(ctx context.Context, projectID int) (archive.Snapshot, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return archive.Snapshot{}, err
	}
	contributors, err := s.contributors.ListByProject(ctx, projectID)
	if err != nil {
		return archive.Snapshot{}, fmt.Errorf("snapshot contributors: %w", err)
	}
	issues, err := s.issues.ListByProject(ctx, projectID)
	if err != nil {
		return archive.Snapshot{}, fmt.Errorf("snapshot issues: %w", err)
	}
	comments, err := s.comments.ListByProject(ctx, projectID)
	if err != nil {
		return archive.Snapshot{}, fmt.Errorf("snapshot comments: %w", err)
	}
	return archive.Snapshot{
		Project:      project,
		Contributors: contributors,
		Issues:       issues,
		Comments:     comments,
	}, nil
}
