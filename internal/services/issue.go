package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/softdesk/apiserver/internal/access"
	"github.com/softdesk/apiserver/internal/events"
	"github.com/softdesk/apiserver/internal/store"
	"github.com/softdesk/apiserver/types"
)

const maxIssueTitleLength = 200

// IssueFields holds the writable issue fields. Nil means the field was not sent.
type IssueFields struct {
	Title       *string
	Description *string
	Priority    *types.IssuePriority
	Tag         *types.IssueTag
	Status      *types.IssueStatus
}

func (f IssueFields) apply(issue *types.Issue, partial bool) error {
	verr := &ValidationError{}
	if f.Title != nil {
		issue.Title = strings.TrimSpace(*f.Title)
	} else if !partial {
		verr.Add("title", msgRequired)
	}
	if f.Description != nil {
		issue.Description = strings.TrimSpace(*f.Description)
	} else if !partial {
		verr.Add("description", msgRequired)
	}
	if f.Priority != nil {
		issue.Priority = *f.Priority
	} else if !partial {
		verr.Add("priority", msgRequired)
	}
	if f.Tag != nil {
		issue.Tag = *f.Tag
	} else if !partial {
		verr.Add("tag", msgRequired)
	}
	if f.Status != nil {
		issue.Status = *f.Status
	} else if !partial {
		verr.Add("status", msgRequired)
	}

	checkText(verr, "title", issue.Title, maxIssueTitleLength)
	checkText(verr, "description", issue.Description, 0)
	if !issue.Priority.Valid() {
		verr.Add("priority", invalidChoice(string(issue.Priority)))
	}
	if !issue.Tag.Valid() {
		verr.Add("tag", invalidChoice(string(issue.Tag)))
	}
	if !issue.Status.Valid() {
		verr.Add("status", invalidChoice(string(issue.Status)))
	}
	return verr.Err()
}

// IssueService encapsulates issue use-cases. Every call is scoped to the
// project in the request path.
type IssueService struct {
	projects ProjectRepository
	issues   IssueRepository
	notifier
}

func NewIssueService(deps Deps) *IssueService {
	deps = deps.withDefaults()
	return &IssueService{
		projects: deps.Projects,
		issues:   deps.Issues,
		notifier: newNotifier(deps),
	}
}

func (s *IssueService) List(ctx context.Context, actor types.UserSummary, projectID int) ([]types.Issue, error) {
	role, err := projectRole(ctx, s.projects, projectID, actor)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(access.ResourceIssue, access.ActionList, role); err != nil {
		return nil, err
	}
	return s.issues.ListByProject(ctx, projectID)
}

func (s *IssueService) Get(ctx context.Context, actor types.UserSummary, projectID, issueID int) (types.Issue, error) {
	role, err := projectRole(ctx, s.projects, projectID, actor)
	if err != nil {
		return types.Issue{}, err
	}
	if err := access.Authorize(access.ResourceIssue, access.ActionRetrieve, role); err != nil {
		return types.Issue{}, err
	}
	return s.load(ctx, projectID, issueID)
}

// Create files an issue against projectID. The project comes from the path
// and the author is always the actor.
func (s *IssueService) Create(ctx context.Context, actor types.UserSummary, projectID int, fields IssueFields) (types.Issue, error) {
	role, err := projectRole(ctx, s.projects, projectID, actor)
	if err != nil {
		return types.Issue{}, err
	}
	if err := access.Authorize(access.ResourceIssue, access.ActionCreate, role); err != nil {
		return types.Issue{}, err
	}

	issue := types.Issue{ProjectID: projectID, Author: actor}
	if err := fields.apply(&issue, false); err != nil {
		return types.Issue{}, err
	}

	created, err := s.issues.Create(ctx, issue)
	if err != nil {
		return types.Issue{}, fmt.Errorf("create issue: %w", err)
	}
	s.publish(ctx, events.Event{Type: events.IssueCreated, ActorID: actor.ID, ProjectID: projectID, IssueID: created.ID})
	return created, nil
}

// Update lets the issue's author change its writable fields.
func (s *IssueService) Update(ctx context.Context, actor types.UserSummary, projectID, issueID int, fields IssueFields, partial bool) (types.Issue, error) {
	issue, err := s.loadOwned(ctx, actor, projectID, issueID, access.ActionUpdate)
	if err != nil {
		return types.Issue{}, err
	}
	if err := fields.apply(&issue, partial); err != nil {
		return types.Issue{}, err
	}

	updated, err := s.issues.Update(ctx, issue)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Issue{}, notFound(access.ResourceIssue)
		}
		return types.Issue{}, fmt.Errorf("update issue %d: %w", issueID, err)
	}
	s.publish(ctx, events.Event{Type: events.IssueUpdated, ActorID: actor.ID, ProjectID: projectID, IssueID: issueID})
	return updated, nil
}

// Delete lets the issue's author remove it with its comments.
func (s *IssueService) Delete(ctx context.Context, actor types.UserSummary, projectID, issueID int) error {
	if _, err := s.loadOwned(ctx, actor, projectID, issueID, access.ActionDelete); err != nil {
		return err
	}
	if err := s.issues.Delete(ctx, projectID, issueID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(access.ResourceIssue)
		}
		return fmt.Errorf("delete issue %d: %w", issueID, err)
	}
	s.publish(ctx, events.Event{Type: events.IssueDeleted, ActorID: actor.ID, ProjectID: projectID, IssueID: issueID})
	return nil
}

// loadOwned resolves the issue inside the actor's visibility and authorizes
// action against the actor's role on the issue itself.
func (s *IssueService) loadOwned(ctx context.Context, actor types.UserSummary, projectID, issueID int, action access.Action) (types.Issue, error) {
	if _, err := projectRole(ctx, s.projects, projectID, actor); err != nil {
		return types.Issue{}, err
	}
	issue, err := s.load(ctx, projectID, issueID)
	if err != nil {
		return types.Issue{}, err
	}
	if err := access.Authorize(access.ResourceIssue, action, ownerRole(actor, issue.Author.ID)); err != nil {
		return types.Issue{}, err
	}
	return issue, nil
}

func (s *IssueService) load(ctx context.Context, projectID, issueID int) (types.Issue, error) {
	issue, err := s.issues.Get(ctx, projectID, issueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Issue{}, notFound(access.ResourceIssue)
		}
		return types.Issue{}, fmt.Errorf("load issue %d: %w", issueID, err)
	}
	return issue, nil
}
