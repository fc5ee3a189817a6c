package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
	"github.com/Addy-9595/northeasternconnect-backend/internal/store"
)

const maxDescriptionLength = 2000

// eventDateLayouts are the accepted forms of an event date.
var eventDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// EventRequest is the body of event creation and update. On update, empty
// fields keep their current value.
type EventRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Date            string   `json:"date"`
	Location        string   `json:"location"`
	MaxParticipants *int     `json:"max_participants"`
	Tags            []string `json:"tags"`
	ImageURL        string   `json:"image_url"`
	Images          []string `json:"images"`
}

// ListEvents returns all events by date.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListEvents(r.Context(), nil, 0)
	if err != nil {
		h.ServerError(w, r, err, "failed to list events")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// ListUserEvents returns the events a user organizes, by date.
func (h *Handler) ListUserEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "userId", "user")
	if !ok {
		return
	}
	events, err := h.store.ListEvents(r.Context(), &id, 0)
	if err != nil {
		h.ServerError(w, r, err, "failed to list events")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// GetEvent returns one event with its participants.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{"event": event})
}

// CreateEvent schedules an event organized by the caller.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}

	var req EventRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)
	if req.Title == "" || req.Description == "" || req.Date == "" || req.Location == "" {
		h.Error(w, http.StatusBadRequest, "title, description, date, and location are required")
		return
	}
	if msg := validateEvent(&req); msg != "" {
		h.Error(w, http.StatusBadRequest, msg)
		return
	}
	date, err := parseEventDate(req.Date)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid date format")
		return
	}

	event := &models.Event{
		Title:           req.Title,
		Description:     req.Description,
		Date:            date,
		Location:        req.Location,
		OrganizerID:     claims.UserID,
		MaxParticipants: req.MaxParticipants,
		Tags:            normalizeTags(req.Tags),
		ImageURL:        strings.TrimSpace(req.ImageURL),
		Images:          normalizeTags(req.Images),
	}
	if event.ImageURL == "" && len(event.Images) > 0 {
		event.ImageURL = event.Images[0]
	}
	if err := h.store.CreateEvent(r.Context(), event); err != nil {
		h.ServerError(w, r, err, "failed to create event")
		return
	}

	created, err := h.store.GetEvent(r.Context(), event.ID)
	if err != nil || created == nil {
		h.ServerError(w, r, err, "failed to load event")
		return
	}
	h.JSON(w, http.StatusCreated, map[string]interface{}{
		"message": "event created successfully",
		"event":   created,
	})
}

// UpdateEvent edits an event. Only its organizer may do so.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}
	if event.OrganizerID != claims.UserID {
		h.Error(w, http.StatusForbidden, "you can only update your own events")
		return
	}

	var req EventRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg := validateEvent(&req); msg != "" {
		h.Error(w, http.StatusBadRequest, msg)
		return
	}
	if t := strings.TrimSpace(req.Title); t != "" {
		event.Title = t
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		event.Description = d
	}
	if l := strings.TrimSpace(req.Location); l != "" {
		event.Location = l
	}
	if req.Date != "" {
		date, err := parseEventDate(req.Date)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid date format")
			return
		}
		event.Date = date
	}
	if req.MaxParticipants != nil {
		event.MaxParticipants = req.MaxParticipants
	}
	if req.Tags != nil {
		event.Tags = normalizeTags(req.Tags)
	}
	if req.Images != nil {
		event.Images = normalizeTags(req.Images)
	}
	if u := strings.TrimSpace(req.ImageURL); u != "" {
		event.ImageURL = u
	}

	if err := h.store.UpdateEvent(r.Context(), event); err != nil {
		h.ServerError(w, r, err, "failed to update event")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "event updated successfully",
		"event":   event,
	})
}

// DeleteEvent removes an event. Its organizer or an administrator may do so.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}
	if event.OrganizerID != claims.UserID && claims.Role != models.RoleAdmin {
		h.Error(w, http.StatusForbidden, "you can only delete your own events")
		return
	}

	if err := h.store.DeleteEvent(r.Context(), event.ID); err != nil {
		h.ServerError(w, r, err, "failed to delete event")
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "event deleted successfully"})
}

// JoinEvent adds the caller to an event's participants.
func (h *Handler) JoinEvent(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}

	if err := h.store.JoinEvent(r.Context(), event.ID, claims.UserID); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyParticipant):
			h.Error(w, http.StatusBadRequest, "you have already joined this event")
		case errors.Is(err, store.ErrEventFull):
			h.Error(w, http.StatusBadRequest, "event is full")
		case errors.Is(err, store.ErrEventNotFound):
			h.Error(w, http.StatusNotFound, "event not found")
		case errors.Is(err, store.ErrUserNotFound):
			h.Error(w, http.StatusNotFound, "user not found")
		default:
			h.ServerError(w, r, err, "failed to join event")
		}
		return
	}

	updated, err := h.store.GetEvent(r.Context(), event.ID)
	if err != nil || updated == nil {
		h.ServerError(w, r, err, "failed to load event")
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{
		"message":      "successfully joined event",
		"participants": len(updated.Participants),
	})
}

// LeaveEvent removes the caller from an event's participants.
func (h *Handler) LeaveEvent(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}

	left, err := h.store.LeaveEvent(r.Context(), event.ID, claims.UserID)
	if err != nil {
		h.ServerError(w, r, err, "failed to leave event")
		return
	}
	if !left {
		h.Error(w, http.StatusBadRequest, "you are not a participant of this event")
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "successfully left event"})
}

func (h *Handler) loadEvent(w http.ResponseWriter, r *http.Request) (*models.Event, bool) {
	id, ok := h.pathID(w, r, "id", "event")
	if !ok {
		return nil, false
	}
	event, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		h.ServerError(w, r, err, "database error")
		return nil, false
	}
	if event == nil {
		h.Error(w, http.StatusNotFound, "event not found")
		return nil, false
	}
	return event, true
}

func validateEvent(req *EventRequest) string {
	switch {
	case tooLong(strings.TrimSpace(req.Title), maxTitleLength):
		return "title cannot exceed 200 characters"
	case tooLong(strings.TrimSpace(req.Description), maxDescriptionLength):
		return "description cannot exceed 2000 characters"
	case req.MaxParticipants != nil && *req.MaxParticipants < 1:
		return "max_participants must be at least 1"
	case len(req.Tags) > maxTags:
		return "at most 20 tags are allowed"
	case len(req.Images) > maxImages:
		return "at most 10 images are allowed"
	}
	return ""
}

func parseEventDate(s string) (time.Time, error) {
	var err error
	for _, layout := range eventDateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
