package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a direct message between two users.
type Message struct {
	ID          string    `json:"id" db:"id"` // ULID
	SenderID    uuid.UUID `json:"sender_id" db:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id" db:"recipient_id"`
	Sender      *UserRef  `json:"sender,omitempty" db:"-"`
	Recipient   *UserRef  `json:"recipient,omitempty" db:"-"`
	Content     string    `json:"content" db:"content"`
	Read        bool      `json:"read" db:"is_read"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Conversation summarizes the message history between exactly two users.
// Participants are stored in canonical order (see CanonicalPair).
type Conversation struct {
	ID            uuid.UUID         `json:"id"`
	Participants  [2]uuid.UUID      `json:"participants"`
	LastMessageID string            `json:"last_message_id,omitempty"`
	UnreadCount   map[uuid.UUID]int `json:"unread_count"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Unread returns the unread count for userID, zero when no entry exists.
func (c *Conversation) Unread(userID uuid.UUID) int {
	return c.UnreadCount[userID]
}

// ConversationSummary is a conversation as seen by one of its participants.
type ConversationSummary struct {
	ID          uuid.UUID `json:"id"`
	OtherUser   UserRef   `json:"other_user"`
	LastMessage *Message  `json:"last_message,omitempty"`
	UnreadCount int       `json:"unread_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CanonicalPair orders two user IDs so that an unordered pair maps to one key.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
