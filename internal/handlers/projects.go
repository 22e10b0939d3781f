package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/softdesk/apiserver/internal/services"
	"github.com/softdesk/apiserver/types"
)

const contributorAddedMessage = "contributor added"

// ProjectHandler provides HTTP handlers for projects and their contributors.
type ProjectHandler struct {
	projects *services.ProjectService
	log      logrus.FieldLogger
}

func NewProjectHandler(projects *services.ProjectService, log logrus.FieldLogger) *ProjectHandler {
	return &ProjectHandler{projects: projects, log: log}
}

// ProjectRouter registers project routes. nested, when set, is mounted under
// /{projectID}/issues.
func ProjectRouter(r chi.Router, h *ProjectHandler, nested func(r chi.Router)) {
	r.Get("/", h.ListProjects)
	r.Post("/", h.CreateProject)
	r.Get("/{projectID}", h.GetProject)
	r.Put("/{projectID}", h.UpdateProject)
	r.Patch("/{projectID}", h.PatchProject)
	r.Delete("/{projectID}", h.DeleteProject)
	r.Get("/{projectID}/users", h.ListContributors)
	r.Post("/{projectID}/users", h.AddContributor)
	r.Delete("/{projectID}/users/{userID}", h.RemoveContributor)
	if nested != nil {
		r.Route("/{projectID}/issues", nested)
	}
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.Get(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to fetch project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.Create(r.Context(), actorFromContext(r.Context()), req.fields())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *ProjectHandler) PatchProject(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *ProjectHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req ProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.Update(r.Context(), actorFromContext(r.Context()), id, req.fields(), partial)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to update project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.projects.Delete(r.Context(), actorFromContext(r.Context()), id); err != nil {
		writeServiceError(w, r, h.log, err, "failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) ListContributors(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contributors, err := h.projects.Contributors(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list contributors")
		return
	}
	writeJSON(w, http.StatusOK, contributors)
}

func (h *ProjectHandler) AddContributor(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req ContributorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contributor, err := h.projects.AddContributor(r.Context(), actorFromContext(r.Context()), id, req.UserID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to add contributor")
		return
	}
	writeJSON(w, http.StatusCreated, ContributorResponse{
		Message:     contributorAddedMessage,
		Contributor: contributor,
	})
}

func (h *ProjectHandler) RemoveContributor(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.projects.RemoveContributor(r.Context(), actorFromContext(r.Context()), projectID, userID); err != nil {
		writeServiceError(w, r, h.log, err, "failed to remove contributor")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProjectRequest is the body of project create and update calls. The author
// is never read from the body.
type ProjectRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Type        *types.ProjectType `json:"type"`
}

func (req ProjectRequest) fields() services.ProjectFields {
	return services.ProjectFields{Title: req.Title, Description: req.Description, Type: req.Type}
}

type ContributorRequest struct {
	UserID int `json:"user_id"`
}

type ContributorResponse struct {
	Message     string            `json:"message"`
	Contributor types.Contributor `json:"contributor"`
}
