package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Addy-9595/northeasternconnect-backend/internal/metrics"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
)

const (
	maxTitleLength   = 200
	maxPostLength    = 5000
	maxCommentLength = 500
	maxTags          = 20
	maxImages        = 10
)

// PostRequest is the body of post creation and update. On update, empty
// fields keep their current value.
type PostRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	ImageURL string   `json:"image_url"`
	Images   []string `json:"images"`
}

// CommentRequest is the body of a new comment.
type CommentRequest struct {
	Text            string     `json:"text"`
	ParentCommentID *uuid.UUID `json:"parent_comment_id"`
}

// ListPosts returns all posts, newest first.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.store.ListPosts(r.Context(), nil, 0)
	if err != nil {
		h.ServerError(w, r, err, "failed to list posts")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

// ListUserPosts returns one author's posts, newest first.
func (h *Handler) ListUserPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userId", "user")
	if !ok {
		return
	}
	posts, err := h.store.ListPosts(r.Context(), &id, 0)
	if err != nil {
		h.ServerError(w, r, err, "failed to list posts")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

// GetPost returns one post.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"post": post})
}

// CreatePost publishes a post by the caller.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}

	var req PostRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" {
		h.Error(w, http.StatusBadRequest, "title and content are required")
		return
	}
	if msg := validatePost(&req); msg != "" {
		h.Error(w, http.StatusBadRequest, msg)
		return
	}

	post := &models.Post{
		Title:    req.Title,
		Content:  req.Content,
		AuthorID: claims.UserID,
		Tags:     normalizeTags(req.Tags),
		ImageURL: strings.TrimSpace(req.ImageURL),
		Images:   normalizeTags(req.Images),
	}
	if post.ImageURL == "" && len(post.Images) > 0 {
		post.ImageURL = post.Images[0]
	}
	if err := h.store.CreatePost(r.Context(), post); err != nil {
		h.ServerError(w, r, err, "failed to create post")
		return
	}
	metrics.PostsCreated.Inc()

	created, err := h.store.GetPost(r.Context(), post.ID)
	if err != nil || created == nil {
		h.ServerError(w, r, err, "failed to load post")
		return
	}
	h.JSON(w, http.StatusCreated, map[string]interface{}{
		"message": "post created successfully",
		"post":    created,
	})
}

// UpdatePost edits a post. Only its author may do so.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	if post.AuthorID != claims.UserID {
		h.Error(w, http.StatusForbidden, "you can only update your own posts")
		return
	}

	var req PostRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg := validatePost(&req); msg != "" {
		h.Error(w, http.StatusBadRequest, msg)
		return
	}
	if t := strings.TrimSpace(req.Title); t != "" {
		post.Title = t
	}
	if c := strings.TrimSpace(req.Content); c != "" {
		post.Content = c
	}
	if req.Tags != nil {
		post.Tags = normalizeTags(req.Tags)
	}
	if req.Images != nil {
		post.Images = normalizeTags(req.Images)
		if len(post.Images) > 0 {
			post.ImageURL = post.Images[0]
		}
	}
	if u := strings.TrimSpace(req.ImageURL); u != "" {
		post.ImageURL = u
	}

	if err := h.store.UpdatePost(r.Context(), post); err != nil {
		h.ServerError(w, r, err, "failed to update post")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "post updated successfully",
		"post":    post,
	})
}

// DeletePost removes a post. Its author or an administrator may do so.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	if post.AuthorID != claims.UserID && claims.Role != models.RoleAdmin {
		h.Error(w, http.StatusForbidden, "you can only delete your own posts")
		return
	}

	if err := h.store.DeletePost(r.Context(), post.ID); err != nil {
		h.ServerError(w, r, err, "failed to delete post")
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "post deleted successfully"})
}

// ToggleLike likes a post for the caller, or removes the like.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}

	liked, count, err := h.store.ToggleLike(r.Context(), post.ID, claims.UserID)
	if err != nil {
		h.ServerError(w, r, err, "failed to update like")
		return
	}
	message := "post unliked"
	if liked {
		message = "post liked"
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"liked":   liked,
		"likes":   count,
	})
}

// AddComment adds the caller's comment to a post, optionally as a reply.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}

	var req CommentRequest
	if !h.decode(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		h.Error(w, http.StatusBadRequest, "comment text is required")
		return
	}
	if tooLong(text, maxCommentLength) {
		h.Error(w, http.StatusBadRequest, "comment cannot exceed 500 characters")
		return
	}
	if req.ParentCommentID != nil && post.Comment(*req.ParentCommentID) == nil {
		h.Error(w, http.StatusBadRequest, "parent comment not found")
		return
	}

	comment := &models.Comment{
		PostID:          post.ID,
		UserID:          claims.UserID,
		Text:            text,
		ParentCommentID: req.ParentCommentID,
	}
	if err := h.store.AddComment(r.Context(), comment); err != nil {
		h.ServerError(w, r, err, "failed to add comment")
		return
	}

	updated, err := h.store.GetPost(r.Context(), post.ID)
	if err != nil || updated == nil {
		h.ServerError(w, r, err, "failed to load post")
		return
	}
	h.JSON(w, http.StatusCreated, map[string]interface{}{
		"message": "comment added successfully",
		"post":    updated,
	})
}

// DeleteComment removes a comment. The comment's author, the post's author
// or an administrator may do so.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	commentID, ok := h.pathID(w, r, "commentId", "comment")
	if !ok {
		return
	}

	comment := post.Comment(commentID)
	if comment == nil {
		h.Error(w, http.StatusNotFound, "comment not found")
		return
	}
	if comment.UserID != claims.UserID && post.AuthorID != claims.UserID && claims.Role != models.RoleAdmin {
		h.Error(w, http.StatusForbidden, "not authorized to delete this comment")
		return
	}

	if _, err := h.store.DeleteComment(r.Context(), post.ID, commentID); err != nil {
		h.ServerError(w, r, err, "failed to delete comment")
		return
	}
	updated, err := h.store.GetPost(r.Context(), post.ID)
	if err != nil || updated == nil {
		h.ServerError(w, r, err, "failed to load post")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "comment deleted successfully",
		"post":    updated,
	})
}

func (h *Handler) loadPost(w http.ResponseWriter, r *http.Request) (*models.Post, bool) {
	id, ok := h.pathID(w, r, "id", "post")
	if !ok {
		return nil, false
	}
	post, err := h.store.GetPost(r.Context(), id)
	if err != nil {
		h.ServerError(w, r, err, "database error")
		return nil, false
	}
	if post == nil {
		h.Error(w, http.StatusNotFound, "post not found")
		return nil, false
	}
	return post, true
}

func validatePost(req *PostRequest) string {
	switch {
	case tooLong(strings.TrimSpace(req.Title), maxTitleLength):
		return "title cannot exceed 200 characters"
	case tooLong(strings.TrimSpace(req.Content), maxPostLength):
		return "content cannot exceed 5000 characters"
	case len(req.Tags) > maxTags:
		return "at most 20 tags are allowed"
	case len(req.Images) > maxImages:
		return "at most 10 images are allowed"
	}
	return ""
}

// normalizeTags trims entries and drops blanks and exact duplicates.
func normalizeTags(raw []string) models.StringList {
	out := models.StringList{}
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
