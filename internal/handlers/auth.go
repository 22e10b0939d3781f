package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/softdesk/apiserver/internal/auth"
	"github.com/softdesk/apiserver/internal/logging"
	"github.com/softdesk/apiserver/internal/services"
	"github.com/softdesk/apiserver/internal/store"
)

const signUpMessage = "account created"

// AuthHandler provides sign-up and JWT endpoints.
type AuthHandler struct {
	users  *services.UserService
	tokens *auth.TokenManager
	log    logrus.FieldLogger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(users *services.UserService, tokens *auth.TokenManager, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, log: log}
}

// AuthRouter registers the public auth routes. throttle, when set, guards
// every route against credential stuffing.
func AuthRouter(r chi.Router, h *AuthHandler, throttle func(http.Handler) http.Handler) {
	if throttle != nil {
		r = r.With(throttle)
	}
	r.Post("/signup", h.SignUp)
	r.Post("/login", h.Login)
	r.Post("/token/refresh", h.Refresh)
}

// RequireAuth validates the bearer access token and loads the active user it
// names into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		userID, err := h.tokens.ParseAccess(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
			return
		}

		user, err := h.users.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "user not found")
				return
			}
			writeServiceError(w, r, h.log, err, "failed to load user")
			return
		}
		if !user.IsActive {
			writeError(w, http.StatusUnauthorized, services.ErrInactiveAccount.Error())
			return
		}

		logging.SetUserID(r.Context(), user.ID)
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), user.Summary())))
	})
}

// SignUp creates an active account and returns a token pair for it.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.SignUp(r.Context(), services.SignUpInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		Password2: req.Password2,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create user")
		return
	}

	tokens, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, SignUpResponse{
		User:    AccountResponse{ID: user.ID, Username: user.Username, Email: user.Email},
		Message: signUpMessage,
		Tokens:  tokens,
	})
}

// Login verifies credentials and returns an access/refresh pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to authenticate")
		return
	}

	tokens, err := h.tokens.Issue(user.ID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create token")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Refresh) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "validation failed",
			Fields: map[string]string{"refresh": "this field is required"},
		})
		return
	}

	access, err := h.tokens.Refresh(req.Refresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Access: access})
}

type SignUpRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type AccountResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type SignUpResponse struct {
	User    AccountResponse `json:"user"`
	Message string          `json:"message"`
	Tokens  auth.TokenPair  `json:"tokens"`
}

type RefreshResponse struct {
	Access string `json:"access"`
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
