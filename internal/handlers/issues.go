package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/softdesk/apiserver/internal/services"
	"github.com/softdesk/apiserver/types"
)

// IssueHandler serves the issues of the project named by {projectID}.
type IssueHandler struct {
	issues *services.IssueService
	log    logrus.FieldLogger
}

func NewIssueHandler(issues *services.IssueService, log logrus.FieldLogger) *IssueHandler {
	return &IssueHandler{issues: issues, log: log}
}

// IssueRouter registers issue routes. nested, when set, is mounted under
// /{issueID}/comments.
func IssueRouter(r chi.Router, h *IssueHandler, nested func(r chi.Router)) {
	r.Get("/", h.ListIssues)
	r.Post("/", h.CreateIssue)
	r.Get("/{issueID}", h.GetIssue)
	r.Put("/{issueID}", h.UpdateIssue)
	r.Patch("/{issueID}", h.PatchIssue)
	r.Delete("/{issueID}", h.DeleteIssue)
	if nested != nil {
		r.Route("/{issueID}/comments", nested)
	}
}

func (h *IssueHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issues, err := h.issues.List(r.Context(), actorFromContext(r.Context()), projectID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list issues")
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (h *IssueHandler) GetIssue(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, err := issuePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issue, err := h.issues.Get(r.Context(), actorFromContext(r.Context()), projectID, issueID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to fetch issue")
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (h *IssueHandler) CreateIssue(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req IssueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issue, err := h.issues.Create(r.Context(), actorFromContext(r.Context()), projectID, req.fields())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create issue")
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (h *IssueHandler) UpdateIssue(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *IssueHandler) PatchIssue(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *IssueHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	projectID, issueID, err := issuePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req IssueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issue, err := h.issues.Update(r.Context(), actorFromContext(r.Context()), projectID, issueID, req.fields(), partial)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to update issue")
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (h *IssueHandler) DeleteIssue(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, err := issuePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.issues.Delete(r.Context(), actorFromContext(r.Context()), projectID, issueID); err != nil {
		writeServiceError(w, r, h.log, err, "failed to delete issue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func issuePath(r *http.Request) (projectID, issueID int, err error) {
	if projectID, err = parseID(r, "projectID"); err != nil {
		return 0, 0, err
	}
	if issueID, err = parseID(r, "issueID"); err != nil {
		return 0, 0, err
	}
	return projectID, issueID, nil
}

// IssueRequest is the body of issue create and update calls. The project and
// author come from the path and the token.
type IssueRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Priority    *types.IssuePriority `json:"priority"`
	Tag         *types.IssueTag      `json:"tag"`
	Status      *types.IssueStatus   `json:"status"`
}

func (req IssueRequest) fields() services.IssueFields {
	return services.IssueFields{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tag:         req.Tag,
		Status:      req.Status,
	}
}
