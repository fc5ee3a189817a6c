package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a scheduled gathering that members can join.
type Event struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Description     string     `json:"description" db:"description"`
	Date            time.Time  `json:"date" db:"date"`
	Location        string     `json:"location" db:"location"`
	OrganizerID     uuid.UUID  `json:"-" db:"organizer_id"`
	Organizer       *UserRef   `json:"organizer,omitempty" db:"-"`
	Participants    []UserRef  `json:"participants" db:"-"`
	MaxParticipants *int       `json:"max_participants,omitempty" db:"max_participants"`
	Tags            StringList `json:"tags" db:"tags"`
	ImageURL        string     `json:"image_url" db:"image_url"`
	Images          StringList `json:"images" db:"images"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// HasParticipant reports whether userID has joined the event.
func (e *Event) HasParticipant(userID uuid.UUID) bool {
	for _, p := range e.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}
