package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/softdesk/apiserver/internal/services"
)

// CommentHandler serves the comments of the issue named by {issueID}.
type CommentHandler struct {
	comments *services.CommentService
	log      logrus.FieldLogger
}

func NewCommentHandler(comments *services.CommentService, log logrus.FieldLogger) *CommentHandler {
	return &CommentHandler{comments: comments, log: log}
}

func CommentRouter(r chi.Router, h *CommentHandler) {
	r.Get("/", h.ListComments)
	r.Post("/", h.CreateComment)
	r.Get("/{commentID}", h.GetComment)
	r.Put("/{commentID}", h.UpdateComment)
	r.Patch("/{commentID}", h.PatchComment)
	r.Delete("/{commentID}", h.DeleteComment)
}

func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, err := issuePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := h.comments.List(r.Context(), actorFromContext(r.Context()), projectID, issueID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to list comments")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) GetComment(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, commentID, err := commentPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.comments.Get(r.Context(), actorFromContext(r.Context()), projectID, issueID, commentID)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to fetch comment")
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, err := issuePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.comments.Create(r.Context(), actorFromContext(r.Context()), projectID, issueID, req.fields())
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to create comment")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *CommentHandler) PatchComment(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *CommentHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	projectID, issueID, commentID, err := commentPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.comments.Update(r.Context(), actorFromContext(r.Context()), projectID, issueID, commentID, req.fields(), partial)
	if err != nil {
		writeServiceError(w, r, h.log, err, "failed to update comment")
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, commentID, err := commentPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.comments.Delete(r.Context(), actorFromContext(r.Context()), projectID, issueID, commentID); err != nil {
		writeServiceError(w, r, h.log, err, "failed to delete comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func commentPath(r *http.Request) (projectID, issueID, commentID int, err error) {
	if projectID, issueID, err = issuePath(r); err != nil {
		return 0, 0, 0, err
	}
	if commentID, err = parseID(r, "commentID"); err != nil {
		return 0, 0, 0, err
	}
	return projectID, issueID, commentID, nil
}

type CommentRequest struct {
	Description *string `json:"description"`
}

func (req CommentRequest) fields() services.CommentFields {
	return services.CommentFields{Description: req.Description}
}
