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

// CommentFields holds the writable comment fields.
type CommentFields struct {
	Description *string
}

func (f CommentFields) apply(comment *types.Comment, partial bool) error {
	verr := &ValidationError{}
	if f.Description != nil {
		comment.Description = strings.TrimSpace(*f.Description)
	} else if !partial {
		verr.Add("description", msgRequired)
	}
	checkText(verr, "description", comment.Description, 0)
	return verr.Err()
}

// CommentService encapsulates comment use-cases. Every call is scoped to the
// project and issue in the request path.
type CommentService struct {
	projects ProjectRepository
	issues   IssueRepository
	comments CommentRepository
	notifier
}

func NewCommentService(deps Deps) *CommentService {
	deps = deps.withDefaults()
	return &CommentService{
		projects: deps.Projects,
		issues:   deps.Issues,
		comments: deps.Comments,
		notifier: newNotifier(deps),
	}
}

func (s *CommentService) List(ctx context.Context, actor types.UserSummary, projectID, issueID int) ([]types.Comment, error) {
	if err := s.authorizeOnIssue(ctx, actor, projectID, issueID, access.ActionList); err != nil {
		return nil, err
	}
	return s.comments.ListByIssue(ctx, issueID)
}

func (s *CommentService) Get(ctx context.Context, actor types.UserSummary, projectID, issueID, commentID int) (types.Comment, error) {
	if err := s.authorizeOnIssue(ctx, actor, projectID, issueID, access.ActionRetrieve); err != nil {
		return types.Comment{}, err
	}
	return s.load(ctx, issueID, commentID)
}

// Create posts a comment on issueID. The issue comes from the path and the
// author is always the actor.
func (s *CommentService) Create(ctx context.Context, actor types.UserSummary, projectID, issueID int, fields CommentFields) (types.Comment, error) {
	if err := s.authorizeOnIssue(ctx, actor, projectID, issueID, access.ActionCreate); err != nil {
		return types.Comment{}, err
	}

	comment := types.Comment{IssueID: issueID, Author: actor}
	if err := fields.apply(&comment, false); err != nil {
		return types.Comment{}, err
	}

	created, err := s.comments.Create(ctx, comment)
	if err != nil {
		return types.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	s.publish(ctx, events.Event{
		Type:      events.CommentCreated,
		ActorID:   actor.ID,
		ProjectID: projectID,
		IssueID:   issueID,
		CommentID: created.ID,
	})
	return created, nil
}

// Update lets the comment's author rewrite it.
func (s *CommentService) Update(ctx context.Context, actor types.UserSummary, projectID, issueID, commentID int, fields CommentFields, partial bool) (types.Comment, error) {
	comment, err := s.loadOwned(ctx, actor, projectID, issueID, commentID, access.ActionUpdate)
	if err != nil {
		return types.Comment{}, err
	}
	if err := fields.apply(&comment, partial); err != nil {
		return types.Comment{}, err
	}

	updated, err := s.comments.Update(ctx, comment)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Comment{}, notFound(access.ResourceComment)
		}
		return types.Comment{}, fmt.Errorf("update comment %d: %w", commentID, err)
	}
	s.publish(ctx, events.Event{
		Type:      events.CommentUpdated,
		ActorID:   actor.ID,
		ProjectID: projectID,
		IssueID:   issueID,
		CommentID: commentID,
	})
	return updated, nil
}

// Delete lets the comment's author remove it.
func (s *CommentService) Delete(ctx context.Context, actor types.UserSummary, projectID, issueID, commentID int) error {
	if _, err := s.loadOwned(ctx, actor, projectID, issueID, commentID, access.ActionDelete); err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, issueID, commentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(access.ResourceComment)
		}
		return fmt.Errorf("delete comment %d: %w", commentID, err)
	}
	s.publish(ctx, events.Event{
		Type:      events.CommentDeleted,
		ActorID:   actor.ID,
		ProjectID: projectID,
		IssueID:   issueID,
		CommentID: commentID,
	})
	return nil
}

// authorizeOnIssue checks the project is visible, the issue belongs to it,
// and the actor's project role permits action.
func (s *CommentService) authorizeOnIssue(ctx context.Context, actor types.UserSummary, projectID, issueID int, action access.Action) error {
	role, err := projectRole(ctx, s.projects, projectID, actor)
	if err != nil {
		return err
	}
	if _, err := s.issues.Get(ctx, projectID, issueID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(access.ResourceIssue)
		}
		return fmt.Errorf("load issue %d: %w", issueID, err)
	}
	return access.Authorize(access.ResourceComment, action, role)
}

func (s *CommentService) loadOwned(ctx context.Context, actor types.UserSummary, projectID, issueID, commentID int, action access.Action) (types.Comment, error) {
	if err := s.authorizeOnIssue(ctx, actor, projectID, issueID, access.ActionRetrieve); err != nil {
		return types.Comment{}, err
	}
	comment, err := s.load(ctx, issueID, commentID)
	if err != nil {
		return types.Comment{}, err
	}
	if err := access.Authorize(access.ResourceComment, action, ownerRole(actor, comment.Author.ID)); err != nil {
		return types.Comment{}, err
	}
	return comment, nil
}

func (s *CommentService) load(ctx context.Context, issueID, commentID int) (types.Comment, error) {
	comment, err := s.comments.Get(ctx, issueID, commentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Comment{}, notFound(access.ResourceComment)
		}
		return types.Comment{}, fmt.Errorf("load comment %d: %w", commentID, err)
	}
	return comment, nil
}
