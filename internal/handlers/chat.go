package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Addy-9595/northeasternconnect-backend/internal/messaging"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
)

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

// SendMessageResponse represents the send message response.
type SendMessageResponse struct {
	Message string          `json:"message"`
	Data    *models.Message `json:"data"`
}

// ConversationsResponse lists the caller's conversations.
type ConversationsResponse struct {
	Conversations []models.ConversationSummary `json:"conversations"`
}

// SendMessage handles sending a direct message.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}

	var req SendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	var recipientID uuid.UUID
	if s := strings.TrimSpace(req.RecipientID); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid recipient ID format")
			return
		}
		recipientID = id
	}

	msg, err := h.messages.Send(r.Context(), claims.UserID, recipientID, req.Content)
	if err != nil {
		h.messagingError(w, r, err)
		return
	}

	h.JSON(w, http.StatusCreated, SendMessageResponse{Message: "message sent", Data: msg})
}

// Conversations handles listing the caller's conversations.
func (h *Handler) Conversations(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}

	convs, err := h.messages.Conversations(r.Context(), claims.UserID)
	if err != nil {
		h.messagingError(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, ConversationsResponse{Conversations: convs})
}

// ConversationMessages handles fetching one page of a conversation.
func (h *Handler) ConversationMessages(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}
	id, ok := h.pathID(w, r, "id", "conversation")
	if !ok {
		return
	}

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page = p
	}

	result, err := h.messages.Messages(r.Context(), id, claims.UserID, page)
	if err != nil {
		h.messagingError(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, result)
}

// MarkRead handles the recipient acknowledging a message.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}

	if _, err := h.messages.MarkRead(r.Context(), chi.URLParam(r, "id"), claims.UserID); err != nil {
		h.messagingError(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "marked as read"})
}

// DeleteMessage handles deleting a message.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	claims := h.currentUser(w, r)
	if claims == nil {
		return
	}

	if err := h.messages.Delete(r.Context(), chi.URLParam(r, "id"), claims.UserID, claims.Role); err != nil {
		h.messagingError(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "message deleted"})
}

// messagingError maps messaging errors onto HTTP statuses.
func (h *Handler) messagingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, messaging.ErrMissingFields),
		errors.Is(err, messaging.ErrEmptyContent),
		errors.Is(err, messaging.ErrContentTooLong),
		errors.Is(err, messaging.ErrSelfMessage):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, messaging.ErrRecipientNotFound),
		errors.Is(err, messaging.ErrConversationNotFound),
		errors.Is(err, messaging.ErrMessageNotFound):
		h.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, messaging.ErrNotParticipant),
		errors.Is(err, messaging.ErrNotRecipient),
		errors.Is(err, messaging.ErrNotSender):
		h.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, messaging.ErrRateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(int(messaging.RateWindow.Seconds())))
		h.Error(w, http.StatusTooManyRequests, err.Error())
	default:
		h.ServerError(w, r, err, "messaging error")
	}
}
