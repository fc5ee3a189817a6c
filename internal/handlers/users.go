package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Addy-9595/northeasternconnect-backend/internal/lookup"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
	"github.com/Addy-9595/northeasternconnect-backend/internal/store"
)

const (
	profileListLimit = 10
	maxSkills        = 50
	maxSkillLength   = 100
)

// UserProfileResponse is a user with their recent activity.
type UserProfileResponse struct {
	User   *models.User   `json:"user"`
	Posts  []models.Post  `json:"posts"`
	Events []models.Event `json:"events"`
}

// UpdateProfileRequest carries the editable profile fields. Absent fields
// are left unchanged.
type UpdateProfileRequest struct {
	Name           *string   `json:"name"`
	Bio            *string   `json:"bio"`
	Major          *string   `json:"major"`
	Department     *string   `json:"department"`
	ProfilePicture *string   `json:"profile_picture"`
	Skills         *[]string `json:"skills"`
}

// AddCertificationRequest identifies a certificate on its platform.
type AddCertificationRequest struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
}

// ListUsers returns every user.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.ServerError(w, r, err, "failed to list users")
		return
	}
	for i := range users {
		if err := h.loadRelations(r.Context(), &users[i]); err != nil {
			h.ServerError(w, r, err, "failed to load profiles")
			return
		}
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// GetUser handles profile lookup, including recent posts and organized events.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id", "user")
	if !ok {
		return
	}

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		h.ServerError(w, r, err, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err := h.loadRelations(r.Context(), user); err != nil {
		h.ServerError(w, r, err, "failed to load profile")
		return
	}

	posts, err := h.store.ListPosts(r.Context(), &id, profileListLimit)
	if err != nil {
		h.ServerError(w, r, err, "failed to load posts")
		return
	}
	events, err := h.store.ListEvents(r.Context(), &id, profileListLimit)
	if err != nil {
		h.ServerError(w, r, err, "failed to load events")
		return
	}

	h.JSON(w, http.StatusOK, UserProfileResponse{User: user, Posts: posts, Events: events})
}

// UpdateProfile edits the caller's own profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}

	var req UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	upd := models.ProfileUpdate{
		Bio:            trimmed(req.Bio),
		Major:          trimmed(req.Major),
		Department:     trimmed(req.Department),
		ProfilePicture: trimmed(req.ProfilePicture),
	}
	if req.Name != nil {
		name := sanitizeName(*req.Name)
		if name == "" {
			h.Error(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		upd.Name = &name
	}
	if upd.Bio != nil && tooLong(*upd.Bio, maxBioLength) {
		h.Error(w, http.StatusBadRequest, "bio cannot exceed 500 characters")
		return
	}
	if req.Skills != nil {
		skills, err := normalizeSkills(*req.Skills)
		if err != nil {
			h.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		upd.Skills = &skills
	}

	user, err := h.store.UpdateProfile(r.Context(), claims.UserID, upd)
	if err != nil {
		h.ServerError(w, r, err, "failed to update profile")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err := h.loadRelations(r.Context(), user); err != nil {
		h.ServerError(w, r, err, "failed to load profile")
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "profile updated successfully",
		"user":    user,
	})
}

// Follow makes the caller follow another user. Following twice is a no-op.
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	id, ok := h.pathID(w, r, "id", "user")
	if !ok {
		return
	}
	if id == claims.UserID {
		h.Error(w, http.StatusBadRequest, "you cannot follow yourself")
		return
	}
	if !h.bothUsersExist(w, r, claims.UserID, id) {
		return
	}

	if err := h.store.Follow(r.Context(), claims.UserID, id); err != nil && !errors.Is(err, store.ErrAlreadyFollowing) {
		h.ServerError(w, r, err, "failed to follow user")
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "user followed successfully"})
}

// Unfollow removes the caller's follow of another user.
func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	id, ok := h.pathID(w, r, "id", "user")
	if !ok {
		return
	}
	if !h.bothUsersExist(w, r, claims.UserID, id) {
		return
	}

	if _, err := h.store.Unfollow(r.Context(), claims.UserID, id); err != nil {
		h.ServerError(w, r, err, "failed to unfollow user")
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "user unfollowed successfully"})
}

func (h *Handler) bothUsersExist(w http.ResponseWriter, r *http.Request, a, b uuid.UUID) bool {
	refs, err := h.store.GetUserRefs(r.Context(), []uuid.UUID{a, b})
	if err != nil {
		h.ServerError(w, r, err, "database error")
		return false
	}
	if _, ok := refs[a]; !ok {
		h.Error(w, http.StatusNotFound, "user not found")
		return false
	}
	if _, ok := refs[b]; !ok {
		h.Error(w, http.StatusNotFound, "user not found")
		return false
	}
	return true
}

// DeleteUser removes a user. Administrators only.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id", "user")
	if !ok {
		return
	}

	deleted, err := h.store.DeleteUser(r.Context(), id)
	if err != nil {
		h.ServerError(w, r, err, "failed to delete user")
		return
	}
	if !deleted {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "user deleted successfully"})
}

// AddCertification looks up a certificate and attaches it to the caller's profile.
func (h *Handler) AddCertification(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}

	var req AddCertificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Platform) == "" || strings.TrimSpace(req.ID) == "" {
		h.Error(w, http.StatusBadRequest, "platform and id are required")
		return
	}

	cert, err := h.certs.Fetch(r.Context(), req.Platform, req.ID)
	if err != nil {
		if errors.Is(err, lookup.ErrInvalidPlatform) {
			h.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.ServerError(w, r, err, "certification lookup failed")
		return
	}
	if err := h.store.AddCertification(r.Context(), claims.UserID, *cert); err != nil {
		h.ServerError(w, r, err, "failed to save certification")
		return
	}

	h.JSON(w, http.StatusCreated, map[string]interface{}{
		"message":       "certification added",
		"certification": cert,
	})
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// normalizeSkills trims skills and drops blanks and case-insensitive duplicates.
func normalizeSkills(raw []string) (models.StringList, error) {
	out := models.StringList{}
	seen := make(map[string]bool)
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		if tooLong(s, maxSkillLength) {
			return nil, errors.New("skill names cannot exceed 100 characters")
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	if len(out) > maxSkills {
		return nil, errors.New("at most 50 skills are allowed")
	}
	return out, nil
}
