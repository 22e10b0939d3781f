package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/softdesk/apiserver/internal/access"
	"github.com/softdesk/apiserver/internal/archive"
	"github.com/softdesk/apiserver/internal/events"
	"github.com/softdesk/apiserver/internal/store"
	"github.com/softdesk/apiserver/types"
)

var (
	// ErrInvalidCredentials is returned when a username/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInactiveAccount is returned when a deactivated account tries to log in.
	ErrInactiveAccount = errors.New("account is inactive")

	// ErrAlreadyContributor is returned when adding a user twice to a project.
	ErrAlreadyContributor = errors.New("user is already a contributor")
)

// NonFieldErrors keys validation messages that are not about a single field.
const NonFieldErrors = "non_field_errors"

const (
	msgRequired = "this field is required"
	msgBlank    = "this field may not be blank"
)

// ValidationError collects per-field problems with a request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records message for field, keeping the first message per field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// Err returns e when any field was recorded, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func fieldError(field, message string) error {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Taken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
	List(ctx context.Context) ([]types.UserSummary, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	ListVisibleTo(ctx context.Context, userID int) ([]types.Project, error)
	Get(ctx context.Context, id int) (types.Project, error)
	Membership(ctx context.Context, projectID, userID int) (store.Membership, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
	Update(ctx context.Context, project types.Project) (types.Project, error)
	Delete(ctx context.Context, id int) error
}

// ContributorRepository defines persistence operations for project membership.
type ContributorRepository interface {
	Add(ctx context.Context, projectID, userID int) (types.Contributor, error)
	Remove(ctx context.Context, projectID, userID int) error
	ListByProject(ctx context.Context, projectID int) ([]types.Contributor, error)
}

// IssueRepository defines persistence operations for issues.
type IssueRepository interface {
	ListByProject(ctx context.Context, projectID int) ([]types.Issue, error)
	Get(ctx context.Context, projectID, issueID int) (types.Issue, error)
	Create(ctx context.Context, issue types.Issue) (types.Issue, error)
	Update(ctx context.Context, issue types.Issue) (types.Issue, error)
	Delete(ctx context.Context, projectID, issueID int) error
}

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	ListByIssue(ctx context.Context, issueID int) ([]types.Comment, error)
	ListByProject(ctx context.Context, projectID int) ([]types.Comment, error)
	Get(ctx context.Context, issueID, commentID int) (types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	Update(ctx context.Context, comment types.Comment) (types.Comment, error)
	Delete(ctx context.Context, issueID, commentID int) error
}

// ProjectArchiver snapshots a project before it is deleted.
type ProjectArchiver interface {
	Archive(ctx context.Context, snapshot archive.Snapshot) (string, error)
	Discard(ctx context.Context, key string) error
}

const defaultPublishTimeout = 5 * time.Second

// Deps carries the collaborators shared by every service. Events and Logger
// default to no-ops; a nil Archiver disables archiving.
type Deps struct {
	Users        UserRepository
	Projects     ProjectRepository
	Contributors ContributorRepository
	Issues       IssueRepository
	Comments     CommentRepository
	Events       events.Publisher
	Archiver     ProjectArchiver
	Logger       logrus.FieldLogger

	// PublishTimeout bounds each event publish. Zero means five seconds.
	PublishTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		logger := logrus.New()
		logger.SetLevel(logrus.PanicLevel)
		d.Logger = logger
	}
	if d.PublishTimeout <= 0 {
		d.PublishTimeout = defaultPublishTimeout
	}
	return d
}

// notifier publishes activity events. A failed or slow publish never fails
// the request that caused it.
type notifier struct {
	events  events.Publisher
	log     logrus.FieldLogger
	timeout time.Duration
}

func newNotifier(deps Deps) notifier {
	return notifier{events: deps.Events, log: deps.Logger, timeout: deps.PublishTimeout}
}

// publish runs after the change is committed, so it outlives a cancelled
// request but not its own timeout.
func (n notifier) publish(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.events.Publish(ctx, event); err != nil {
		n.log.WithError(err).WithFields(logrus.Fields{
			"event":      event.Type,
			"actor_id":   event.ActorID,
			"project_id": event.ProjectID,
		}).Warn("failed to publish activity event")
	}
}

func notFound(resource access.Resource) error {
	return fmt.Errorf("%s %w", resource, store.ErrNotFound)
}

// projectRole resolves actor's role on projectID. Projects outside the
// actor's visibility are reported as not found.
func projectRole(ctx context.Context, projects ProjectRepository, projectID int, actor types.UserSummary) (access.Role, error) {
	if actor.ID < 1 {
		return access.RoleUnauthenticated, access.ErrUnauthenticated
	}
	m, err := projects.Membership(ctx, projectID, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", notFound(access.ResourceProject)
		}
		return "", fmt.Errorf("resolve membership of project %d: %w", projectID, err)
	}
	role := access.RoleOf(actor.ID, m.AuthorID, m.IsContributor)
	if !access.Visible(role) {
		return role, notFound(access.ResourceProject)
	}
	return role, nil
}

// ownerRole is the actor's role on an issue or comment inside a project the
// actor can already see.
func ownerRole(actor types.UserSummary, authorID int) access.Role {
	return access.RoleOf(actor.ID, authorID, true)
}

func checkText(verr *ValidationError, field, value string, maxLen int) {
	if strings.TrimSpace(value) == "" {
		verr.Add(field, msgBlank)
		return
	}
	if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
		verr.Add(field, fmt.Sprintf("ensure this field has no more than %d characters", maxLen))
	}
}

func invalidChoice(value string) string {
	return fmt.Sprintf("%q is not a valid choice", value)
}
