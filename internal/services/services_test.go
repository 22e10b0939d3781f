package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/softdesk/apiserver/internal/services"
	"github.com/softdesk/apiserver/internal/services/servicestest"
	"github.com/softdesk/apiserver/types"
)

type fixture struct {
	store    *servicestest.Store
	events   *servicestest.Recorder
	users    *services.UserService
	projects *services.ProjectService
	issues   *services.IssueService
	comments *services.CommentService
}

func newFixture(t *testing.T, archiver services.ProjectArchiver) *fixture {
	t.Helper()
	st := servicestest.New()
	rec := &servicestest.Recorder{}
	deps := services.Deps{
		Users:        st.Users,
		Projects:     st.Projects,
		Contributors: st.Contributors,
		Issues:       st.Issues,
		Comments:     st.Comments,
		Events:       rec,
		Archiver:     archiver,
	}
	return &fixture{
		store:    st,
		events:   rec,
		users:    services.NewUserService(deps),
		projects: services.NewProjectService(deps),
		issues:   services.NewIssueService(deps),
		comments: services.NewCommentService(deps),
	}
}

func (f *fixture) user(t *testing.T, username string) types.UserSummary {
	t.Helper()
	user, err := f.store.Users.Create(context.Background(), types.User{
		Username: username,
		Email:    username + "@example.com",
		IsActive: true,
	})
	require.NoError(t, err)
	return user.Summary()
}

func (f *fixture) project(t *testing.T, author types.UserSummary, title string) types.Project {
	t.Helper()
	project, err := f.projects.Create(context.Background(), author, services.ProjectFields{
		Title:       ptr(title),
		Description: ptr("a project"),
		Type:        ptr(types.ProjectTypeWeb),
	})
	require.NoError(t, err)
	return project
}

func (f *fixture) issue(t *testing.T, author types.UserSummary, projectID int) types.Issue {
	t.Helper()
	issue, err := f.issues.Create(context.Background(), author, projectID, issueFields("crash on save"))
	require.NoError(t, err)
	return issue
}

func issueFields(title string) services.IssueFields {
	return services.IssueFields{
		Title:       ptr(title),
		Description: ptr("steps to reproduce"),
		Priority:    ptr(types.PriorityHigh),
		Tag:         ptr(types.TagBug),
		Status:      ptr(types.StatusTodo),
	}
}

func ptr[T any](v T) *T { return &v }

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}
