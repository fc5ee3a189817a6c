package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
)

const (
	maxJobCommentLength = 1000
	maxJobIDLength      = 200
)

// JobCommentRequest is the body of a job review.
type JobCommentRequest struct {
	Text   string `json:"text"`
	Rating *int   `json:"rating"`
}

// ListJobComments returns the comments on a job listing, newest first.
func (h *Handler) ListJobComments(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}
	comments, err := h.store.ListJobComments(r.Context(), jobID)
	if err != nil {
		h.ServerError(w, r, err, "failed to list comments")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

// AddJobComment records the caller's review of a job listing.
func (h *Handler) AddJobComment(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}

	var req JobCommentRequest
	if !h.decode(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		h.Error(w, http.StatusBadRequest, "comment text required")
		return
	}
	if tooLong(text, maxJobCommentLength) {
		h.Error(w, http.StatusBadRequest, "comment cannot exceed 1000 characters")
		return
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		h.Error(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	comment := &models.JobComment{
		JobID:  jobID,
		UserID: claims.UserID,
		Text:   text,
		Rating: req.Rating,
	}
	if err := h.store.CreateJobComment(r.Context(), comment); err != nil {
		h.ServerError(w, r, err, "failed to add comment")
		return
	}
	refs, err := h.store.GetUserRefs(r.Context(), []uuid.UUID{claims.UserID})
	if err == nil {
		if ref, ok := refs[claims.UserID]; ok {
			comment.User = &ref
		}
	}

	h.JSON(w, http.StatusCreated, map[string]interface{}{"comment": comment})
}

// DeleteJobComment removes a job review. Its author or an administrator may do so.
func (h *Handler) DeleteJobComment(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	id, ok := h.pathID(w, r, "id", "comment")
	if !ok {
		return
	}

	comment, err := h.store.GetJobComment(r.Context(), id)
	if err != nil {
		h.ServerError(w, r, err, "database error")
		return
	}
	if comment == nil {
		h.Error(w, http.StatusNotFound, "comment not found")
		return
	}
	if comment.UserID != claims.UserID && claims.Role != models.RoleAdmin {
		h.Error(w, http.StatusForbidden, "not authorized to delete this comment")
		return
	}

	if err := h.store.DeleteJobComment(r.Context(), id); err != nil {
		h.ServerError(w, r, err, "failed to delete comment")
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "comment deleted"})
}

func (h *Handler) jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	jobID := strings.TrimSpace(chi.URLParam(r, "id"))
	if jobID == "" || len(jobID) > maxJobIDLength {
		h.Error(w, http.StatusBadRequest, "invalid job ID")
		return "", false
	}
	return jobID, true
}
