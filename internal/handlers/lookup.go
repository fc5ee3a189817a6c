package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Addy-9595/northeasternconnect-backend/internal/lookup"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
)

const maxSkillQueryLength = 100

// SkillSearchResponse represents the skill search response.
type SkillSearchResponse struct {
	Skills []models.Skill `json:"skills"`
}

// SearchSkills handles skill autocompletion over the curated vocabulary and
// the external taxonomy.
func (h *Handler) SearchSkills(w http.ResponseWriter, r *http.Request) {
	query := truncate(strings.TrimSpace(r.URL.Query().Get("q")), maxSkillQueryLength)
	if query == "" {
		h.Error(w, http.StatusBadRequest, "query required")
		return
	}

	h.JSON(w, http.StatusOK, SkillSearchResponse{Skills: h.skills.Search(r.Context(), query)})
}

// FetchCertification handles certificate lookup on its issuing platform.
func (h *Handler) FetchCertification(w http.ResponseWriter, r *http.Request) {
	platform := strings.TrimSpace(r.URL.Query().Get("platform"))
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if platform == "" || id == "" {
		h.Error(w, http.StatusBadRequest, "platform and id required")
		return
	}

	cert, err := h.certs.Fetch(r.Context(), platform, id)
	if err != nil {
		if errors.Is(err, lookup.ErrInvalidPlatform) {
			h.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.ServerError(w, r, err, "certification lookup failed")
		return
	}
	h.JSON(w, http.StatusOK, cert)
}
