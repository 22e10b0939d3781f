package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/softdesk/apiserver/internal/access"
	"github.com/softdesk/apiserver/internal/auth"
	"github.com/softdesk/apiserver/internal/events"
	"github.com/softdesk/apiserver/internal/store"
	"github.com/softdesk/apiserver/types"
)

const maxUsernameLength = 150

// SignUpInput is the sign-up form.
type SignUpInput struct {
	Username  string
	Email     string
	Password  string
	Password2 string
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo UserRepository
	notifier
}

func NewUserService(deps Deps) *UserService {
	deps = deps.withDefaults()
	return &UserService{
		repo:     deps.Users,
		notifier: newNotifier(deps),
	}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, notFound(access.ResourceUser)
	}
	return user, err
}

// SignUp validates the form and creates an active account. No row is
// written when any field is rejected.
func (s *UserService) SignUp(ctx context.Context, in SignUpInput) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	verr := &ValidationError{}
	switch {
	case in.Username == "":
		verr.Add("username", msgRequired)
	case utf8.RuneCountInString(in.Username) > maxUsernameLength:
		verr.Add("username", fmt.Sprintf("ensure this field has no more than %d characters", maxUsernameLength))
	case strings.ContainsAny(in.Username, " \t\r\n"):
		verr.Add("username", "username may not contain spaces")
	}
	if in.Email == "" {
		verr.Add("email", msgRequired)
	} else if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		verr.Add("email", "enter a valid email address")
	}
	if in.Password == "" {
		verr.Add("password", msgRequired)
	} else if len(in.Password) > auth.MaxPasswordBytes {
		verr.Add("password", fmt.Sprintf("ensure this field has no more than %d bytes", auth.MaxPasswordBytes))
	}
	if in.Password2 == "" {
		verr.Add("password2", msgRequired)
	}
	if err := verr.Err(); err != nil {
		return types.User{}, err
	}
	if in.Password != in.Password2 {
		return types.User{}, fieldError("password", "passwords do not match")
	}

	usernameTaken, emailTaken, err := s.repo.Taken(ctx, in.Username, in.Email)
	if err != nil {
		return types.User{}, fmt.Errorf("check existing accounts: %w", err)
	}
	if usernameTaken {
		verr.Add("username", "username already exists")
	}
	if emailTaken {
		verr.Add("email", "email already exists")
	}
	if err := verr.Err(); err != nil {
		return types.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     true,
	})
	if err != nil {
		// Lost a race with a concurrent sign-up for the same name or address.
		if errors.Is(err, store.ErrConflict) {
			if strings.Contains(err.Error(), "email") {
				return types.User{}, fieldError("email", "email already exists")
			}
			return types.User{}, fieldError("username", "username already exists")
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.publish(ctx, events.Event{Type: events.UserSignedUp, ActorID: user.ID, UserID: user.ID})
	return user, nil
}

// Authenticate checks credentials. Inactive accounts are rejected only after
// the password matched, so the response does not reveal which accounts exist.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, fieldError(NonFieldErrors, "username and password are required")
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return types.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return types.User{}, ErrInactiveAccount
	}
	return user, nil
}

// List returns every account to any authenticated user.
func (s *UserService) List(ctx context.Context, actor types.UserSummary) ([]types.UserSummary, error) {
	if err := access.Authorize(access.ResourceUser, access.ActionList, access.RoleOf(actor.ID, 0, false)); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// DeleteSelf removes the actor's account together with everything it owns.
func (s *UserService) DeleteSelf(ctx context.Context, actor types.UserSummary) error {
	if actor.ID < 1 {
		return access.ErrUnauthenticated
	}
	if err := s.repo.Delete(ctx, actor.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(access.ResourceUser)
		}
		return fmt.Errorf("delete user %d: %w", actor.ID, err)
	}
	s.publish(ctx, events.Event{Type: events.UserDeleted, ActorID: actor.ID, UserID: actor.ID})
	return nil
}
