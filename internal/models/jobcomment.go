package models

import (
	"time"

	"github.com/google/uuid"
)

// JobComment is a review left on an external job listing.
type JobComment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	JobID     string    `json:"job_id" db:"job_id"`
	UserID    uuid.UUID `json:"-" db:"user_id"`
	User      *UserRef  `json:"user,omitempty" db:"-"`
	Text      string    `json:"text" db:"text"`
	Rating    *int      `json:"rating,omitempty" db:"rating"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
