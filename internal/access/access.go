// Package access holds the authorization rules for projects, issues,
// comments, and users as a single decision table.
//
// Callers resolve the acting user's Role relative to a resource and ask
// Authorize whether an Action is permitted. For issues and comments the role
// for create, list, and retrieve is taken relative to the parent project,
// while update and delete use the role relative to the issue or comment itself.
package access

import (
	"errors"
	"fmt"
)

// Resource names a kind of object guarded by the table.
type Resource string

const (
	ResourceProject Resource = "project"
	ResourceIssue   Resource = "issue"
	ResourceComment Resource = "comment"
	ResourceUser    Resource = "user"
)

// Action names an operation on a resource.
type Action string

const (
	ActionCreate            Action = "create"
	ActionList              Action = "list"
	ActionRetrieve          Action = "retrieve"
	ActionUpdate            Action = "update"
	ActionDelete            Action = "delete"
	ActionAddContributor    Action = "add_contributor"
	ActionRemoveContributor Action = "remove_contributor"
)

// Role is the acting user's relationship to a resource.
type Role string

const (
	RoleAuthor          Role = "author"
	RoleContributor     Role = "contributor"
	RoleNeither         Role = "neither"
	RoleUnauthenticated Role = "unauthenticated"
)

var (
	// ErrForbidden matches every authorization denial.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated is returned when no identity accompanies the request.
	ErrUnauthenticated = errors.New("authentication required")
)

// DeniedError explains why an authenticated user may not perform an action.
type DeniedError struct {
	Resource Resource
	Action   Action
	Role     Role
	Reason   string
}

func (e *DeniedError) Error() string {
	return e.Reason
}

// Is makes errors.Is(err, ErrForbidden) true for any denial.
func (e *DeniedError) Is(target error) bool {
	return target == ErrForbidden
}

type key struct {
	resource Resource
	action   Action
}

type rule struct {
	roles  []Role
	reason string
}

var (
	anyone  = []Role{RoleAuthor, RoleContributor, RoleNeither}
	members = []Role{RoleAuthor, RoleContributor}
	owner   = []Role{RoleAuthor}
)

var rules = map[key]rule{
	{ResourceProject, ActionCreate}:            {roles: anyone},
	{ResourceProject, ActionList}:              {roles: members, reason: "not a member of the project"},
	{ResourceProject, ActionRetrieve}:          {roles: members, reason: "not a member of the project"},
	{ResourceProject, ActionUpdate}:            {roles: owner, reason: "not the project's author"},
	{ResourceProject, ActionDelete}:            {roles: owner, reason: "not the project's author"},
	{ResourceProject, ActionAddContributor}:    {roles: owner, reason: "only the project's author can add contributors"},
	{ResourceProject, ActionRemoveContributor}: {roles: owner, reason: "only the project's author can remove contributors"},

	{ResourceIssue, ActionCreate}:   {roles: members, reason: "not a contributor of the project"},
	{ResourceIssue, ActionList}:     {roles: members, reason: "not a contributor of the project"},
	{ResourceIssue, ActionRetrieve}: {roles: members, reason: "not a contributor of the project"},
	{ResourceIssue, ActionUpdate}:   {roles: owner, reason: "not the issue's author"},
	{ResourceIssue, ActionDelete}:   {roles: owner, reason: "not the issue's author"},

	{ResourceComment, ActionCreate}:   {roles: members, reason: "not a contributor of the project"},
	{ResourceComment, ActionList}:     {roles: members, reason: "not a contributor of the project"},
	{ResourceComment, ActionRetrieve}: {roles: members, reason: "not a contributor of the project"},
	{ResourceComment, ActionUpdate}:   {roles: owner, reason: "not the comment's author"},
	{ResourceComment, ActionDelete}:   {roles: owner, reason: "not the comment's author"},

	{ResourceUser, ActionList}: {roles: anyone},
}

// Allowed reports whether role may perform action on resource.
func Allowed(resource Resource, action Action, role Role) bool {
	return Authorize(resource, action, role) == nil
}

// Authorize returns nil when the table permits the action, ErrUnauthenticated
// for anonymous callers, and a *DeniedError otherwise.
func Authorize(resource Resource, action Action, role Role) error {
	if role == RoleUnauthenticated || role == "" {
		return ErrUnauthenticated
	}

	r, ok := rules[key{resource, action}]
	if !ok {
		return &DeniedError{
			Resource: resource,
			Action:   action,
			Role:     role,
			Reason:   fmt.Sprintf("%s is not supported on %s", action, resource),
		}
	}

	for _, allowed := range r.roles {
		if allowed == role {
			return nil
		}
	}

	return &DeniedError{Resource: resource, Action: action, Role: role, Reason: r.reason}
}

// RoleOf derives a user's role from an owner id and a membership flag.
// A userID below 1 means no authenticated identity.
func RoleOf(userID, authorID int, isMember bool) Role {
	switch {
	case userID < 1:
		return RoleUnauthenticated
	case userID == authorID:
		return RoleAuthor
	case isMember:
		return RoleContributor
	default:
		return RoleNeither
	}
}

// Visible reports whether a role places the resource inside the user's
// visibility scope.
func Visible(role Role) bool {
	return role == RoleAuthor || role == RoleContributor
}
