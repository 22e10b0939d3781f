package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/softdesk/apiserver/internal/services"
)

// UserHandler exposes the user directory and account removal.
type UserHandler struct {
	users *services.UserService
	log   logrus.FieldLogger
}

func NewUserHandler(users *services.UserService, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

func UserRouter(r chi.Router, h *UserHandler) {
	r.Get("/", h.ListUsers)
	r.Delete("/me", h.DeleteMe)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// DeleteMe removes the caller's account and everything it authored.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteSelf(r.Context(), actorFromContext(r.Context())); err != nil {
		writeServiceError(w, r, h.log, err, "failed to delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
