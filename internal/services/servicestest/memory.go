// Package servicestest provides in-memory repositories that follow the same
// contracts as the Postgres store, including its cascade deletes, for use in
// service and handler tests.
package servicestest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/softdesk/apiserver/internal/events"
	"github.com/softdesk/apiserver/internal/store"
	"github.com/softdesk/apiserver/types"
)

type db struct {
	mu           sync.Mutex
	seq          int
	users        map[int]types.User
	projects     map[int]types.Project
	contributors map[int]types.Contributor
	issues       map[int]issueRow
	comments     map[int]commentRow
}

type issueRow struct {
	issue    types.Issue
	authorID int
}

type commentRow struct {
	comment  types.Comment
	authorID int
}

func (d *db) next() int {
	d.seq++
	return d.seq
}

func (d *db) summary(userID int) types.UserSummary {
	return d.users[userID].Summary()
}

func (d *db) contributorIDs(projectID int) []int {
	rows := make([]types.Contributor, 0)
	for _, c := range d.contributors {
		if c.ProjectID == projectID {
			rows = append(rows, c)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	ids := make([]int, 0, len(rows))
	for _, c := range rows {
		ids = append(ids, c.User.ID)
	}
	return ids
}

func (d *db) deleteIssue(issueID int) {
	delete(d.issues, issueID)
	for id, row := range d.comments {
		if row.comment.IssueID == issueID {
			delete(d.comments, id)
		}
	}
}

func (d *db) deleteProject(projectID int) {
	delete(d.projects, projectID)
	for id, c := range d.contributors {
		if c.ProjectID == projectID {
			delete(d.contributors, id)
		}
	}
	for id, row := range d.issues {
		if row.issue.ProjectID == projectID {
			d.deleteIssue(id)
		}
	}
}

// Store bundles one repository per entity over a shared in-memory database.
type Store struct {
	d            *db
	Users        *Users
	Projects     *Projects
	Contributors *Contributors
	Issues       *Issues
	Comments     *Comments
}

func New() *Store {
	d := &db{
		users:        make(map[int]types.User),
		projects:     make(map[int]types.Project),
		contributors: make(map[int]types.Contributor),
		issues:       make(map[int]issueRow),
		comments:     make(map[int]commentRow),
	}
	return &Store{
		d:            d,
		Users:        &Users{d},
		Projects:     &Projects{d},
		Contributors: &Contributors{d},
		Issues:       &Issues{d},
		Comments:     &Comments{d},
	}
}

// Counts reports how many rows of each kind exist.
type Counts struct {
	Users, Projects, Contributors, Issues, Comments int
}

func (s *Store) Counts() Counts {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	return Counts{
		Users:        len(s.d.users),
		Projects:     len(s.d.projects),
		Contributors: len(s.d.contributors),
		Issues:       len(s.d.issues),
		Comments:     len(s.d.comments),
	}
}

// Users implements the user repository.
type Users struct{ d *db }

func (r *Users) GetByID(_ context.Context, id int) (types.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	user, ok := r.d.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *Users) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, user := range r.d.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *Users) Taken(_ context.Context, username, email string) (bool, bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var usernameTaken, emailTaken bool
	for _, user := range r.d.users {
		usernameTaken = usernameTaken || user.Username == username
		emailTaken = emailTaken || user.Email == email
	}
	return usernameTaken, emailTaken, nil
}

func (r *Users) List(_ context.Context) ([]types.UserSummary, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	users := make([]types.UserSummary, 0, len(r.d.users))
	for _, user := range r.d.users {
		users = append(users, user.Summary())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *Users) Create(_ context.Context, user types.User) (types.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, existing := range r.d.users {
		if existing.Username == user.Username {
			return types.User{}, fmt.Errorf("%w: users_username_key", store.ErrConflict)
		}
		if existing.Email == user.Email {
			return types.User{}, fmt.Errorf("%w: users_email_key", store.ErrConflict)
		}
	}
	now := time.Now()
	user.ID = r.d.next()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.d.users[user.ID] = user
	return user, nil
}

// Delete removes the user and cascades like the SQL foreign keys do.
func (r *Users) Delete(_ context.Context, id int) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.d.users, id)
	for projectID, p := range r.d.projects {
		if p.AuthorID == id {
			r.d.deleteProject(projectID)
		}
	}
	for cid, c := range r.d.contributors {
		if c.User.ID == id {
			delete(r.d.contributors, cid)
		}
	}
	for issueID, row := range r.d.issues {
		if row.authorID == id {
			r.d.deleteIssue(issueID)
		}
	}
	for commentID, row := range r.d.comments {
		if row.authorID == id {
			delete(r.d.comments, commentID)
		}
	}
	return nil
}

// SetActive toggles the account flag.
func (r *Users) SetActive(id int, active bool) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	user := r.d.users[id]
	user.IsActive = active
	r.d.users[id] = user
}

// Projects implements the project repository.
type Projects struct{ d *db }

func (r *Projects) withContributors(p types.Project) types.Project {
	p.Contributors = r.d.contributorIDs(p.ID)
	return p
}

func (r *Projects) ListVisibleTo(_ context.Context, userID int) ([]types.Project, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	projects := make([]types.Project, 0)
	for _, p := range r.d.projects {
		visible := p.AuthorID == userID
		for _, c := range r.d.contributors {
			if c.ProjectID == p.ID && c.User.ID == userID {
				visible = true
			}
		}
		if visible {
			projects = append(projects, r.withContributors(p))
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

func (r *Projects) Get(_ context.Context, id int) (types.Project, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return r.withContributors(p), nil
}

func (r *Projects) Membership(_ context.Context, projectID, userID int) (store.Membership, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.projects[projectID]
	if !ok {
		return store.Membership{}, store.ErrNotFound
	}
	m := store.Membership{AuthorID: p.AuthorID}
	for _, c := range r.d.contributors {
		if c.ProjectID == projectID && c.User.ID == userID {
			m.IsContributor = true
		}
	}
	return m, nil
}

func (r *Projects) Create(_ context.Context, project types.Project) (types.Project, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.users[project.AuthorID]; !ok {
		return types.Project{}, fmt.Errorf("%w: projects_author_id_fkey", store.ErrInvalidReference)
	}
	now := time.Now()
	project.ID = r.d.next()
	project.CreatedAt = now
	project.UpdatedAt = now
	project.Contributors = []int{}
	r.d.projects[project.ID] = project
	return project, nil
}

func (r *Projects) Update(_ context.Context, project types.Project) (types.Project, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	existing, ok := r.d.projects[project.ID]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	existing.Title = project.Title
	existing.Description = project.Description
	existing.Type = project.Type
	existing.UpdatedAt = time.Now()
	r.d.projects[project.ID] = existing
	return r.withContributors(existing), nil
}

func (r *Projects) Delete(_ context.Context, id int) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.projects[id]; !ok {
		return store.ErrNotFound
	}
	r.d.deleteProject(id)
	return nil
}

// Contributors implements the contributor repository.
type Contributors struct{ d *db }

func (r *Contributors) Add(_ context.Context, projectID, userID int) (types.Contributor, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.projects[projectID]; !ok {
		return types.Contributor{}, store.ErrNotFound
	}
	user, ok := r.d.users[userID]
	if !ok {
		return types.Contributor{}, store.ErrInvalidReference
	}
	for _, c := range r.d.contributors {
		if c.ProjectID == projectID && c.User.ID == userID {
			return types.Contributor{}, store.ErrConflict
		}
	}
	c := types.Contributor{
		ID:        r.d.next(),
		User:      user.Summary(),
		ProjectID: projectID,
		CreatedAt: time.Now(),
	}
	r.d.contributors[c.ID] = c
	return c, nil
}

func (r *Contributors) Remove(_ context.Context, projectID, userID int) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.projects[projectID]; !ok {
		return store.ErrNotFound
	}
	for id, c := range r.d.contributors {
		if c.ProjectID == projectID && c.User.ID == userID {
			delete(r.d.contributors, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *Contributors) ListByProject(_ context.Context, projectID int) ([]types.Contributor, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	rows := make([]types.Contributor, 0)
	for _, c := range r.d.contributors {
		if c.ProjectID == projectID {
			rows = append(rows, c)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

// Issues implements the issue repository.
type Issues struct{ d *db }

func (r *Issues) read(row issueRow) types.Issue {
	issue := row.issue
	issue.Author = r.d.summary(row.authorID)
	return issue
}

func (r *Issues) ListByProject(_ context.Context, projectID int) ([]types.Issue, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	issues := make([]types.Issue, 0)
	for _, row := range r.d.issues {
		if row.issue.ProjectID == projectID {
			issues = append(issues, r.read(row))
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })
	return issues, nil
}

func (r *Issues) Get(_ context.Context, projectID, issueID int) (types.Issue, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	row, ok := r.d.issues[issueID]
	if !ok || row.issue.ProjectID != projectID {
		return types.Issue{}, store.ErrNotFound
	}
	return r.read(row), nil
}

func (r *Issues) Create(_ context.Context, issue types.Issue) (types.Issue, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.projects[issue.ProjectID]; !ok {
		return types.Issue{}, fmt.Errorf("%w: issues_project_id_fkey", store.ErrInvalidReference)
	}
	issue.ID = r.d.next()
	issue.CreatedTime = time.Now()
	r.d.issues[issue.ID] = issueRow{issue: issue, authorID: issue.Author.ID}
	return issue, nil
}

func (r *Issues) Update(_ context.Context, issue types.Issue) (types.Issue, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	row, ok := r.d.issues[issue.ID]
	if !ok || row.issue.ProjectID != issue.ProjectID {
		return types.Issue{}, store.ErrNotFound
	}
	row.issue.Title = issue.Title
	row.issue.Description = issue.Description
	row.issue.Priority = issue.Priority
	row.issue.Tag = issue.Tag
	row.issue.Status = issue.Status
	r.d.issues[issue.ID] = row
	return r.read(row), nil
}

func (r *Issues) Delete(_ context.Context, projectID, issueID int) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	row, ok := r.d.issues[issueID]
	if !ok || row.issue.ProjectID != projectID {
		return store.ErrNotFound
	}
	r.d.deleteIssue(issueID)
	return nil
}

// Comments implements the comment repository.
type Comments struct{ d *db }

func (r *Comments) read(row commentRow) types.Comment {
	comment := row.comment
	comment.Author = r.d.summary(row.authorID)
	return comment
}

func (r *Comments) filter(keep func(types.Comment) bool) []types.Comment {
	comments := make([]types.Comment, 0)
	for _, row := range r.d.comments {
		if keep(row.comment) {
			comments = append(comments, r.read(row))
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	return comments
}

func (r *Comments) ListByIssue(_ context.Context, issueID int) ([]types.Comment, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return r.filter(func(c types.Comment) bool { return c.IssueID == issueID }), nil
}

func (r *Comments) ListByProject(_ context.Context, projectID int) ([]types.Comment, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return r.filter(func(c types.Comment) bool {
		return r.d.issues[c.IssueID].issue.ProjectID == projectID
	}), nil
}

func (r *Comments) Get(_ context.Context, issueID, commentID int) (types.Comment, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	row, ok := r.d.comments[commentID]
	if !ok || row.comment.IssueID != issueID {
		return types.Comment{}, store.ErrNotFound
	}
	return r.read(row), nil
}

func (r *Comments) Create(_ context.Context, comment types.Comment) (types.Comment, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.issues[comment.IssueID]; !ok {
		return types.Comment{}, fmt.Errorf("%w: comments_issue_id_fkey", store.ErrInvalidReference)
	}
	comment.ID = r.d.next()
	comment.CreatedTime = time.Now()
	r.d.comments[comment.ID] = commentRow{comment: comment, authorID: comment.Author.ID}
	return comment, nil
}

func (r *Comments) Update(_ context.Context, comment types.Comment) (types.Comment, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	row, ok := r.d.comments[comment.ID]
	if !ok || row.comment.IssueID != comment.IssueID {
		return types.Comment{}, store.ErrNotFound
	}
	row.comment.Description = comment.Description
	r.d.comments[comment.ID] = row
	return r.read(row), nil
}

func (r *Comments) Delete(_ context.Context, issueID, commentID int) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	row, ok := r.d.comments[commentID]
	if !ok || row.comment.IssueID != issueID {
		return store.ErrNotFound
	}
	delete(r.d.comments, commentID)
	return nil
}

// Recorder is an events.Publisher that keeps every event. Setting Err makes
// Publish fail after recording.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// Last returns the most recent event.
func (r *Recorder) Last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return events.Event{}
	}
	return r.events[len(r.events)-1]
}
