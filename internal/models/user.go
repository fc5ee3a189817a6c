package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level carried in a user's token.
type Role string

const (
	RoleStudent   Role = "student"
	RoleProfessor Role = "professor"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleProfessor, RoleAdmin:
		return true
	}
	return false
}

// User represents a registered member of the university community.
type User struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Email          string          `json:"email" db:"email"`
	PasswordHash   string          `json:"-" db:"password_hash"`
	Role           Role            `json:"role" db:"role"`
	Bio            string          `json:"bio,omitempty" db:"bio"`
	Major          string          `json:"major,omitempty" db:"major"`
	Department     string          `json:"department,omitempty" db:"department"`
	ProfilePicture string          `json:"profile_picture" db:"profile_picture"`
	Skills         StringList      `json:"skills" db:"skills"`
	IsVerified     bool            `json:"is_verified" db:"is_verified"`
	Certifications []Certification `json:"certifications" db:"-"`
	Followers      []UserRef       `json:"followers" db:"-"`
	Following      []UserRef       `json:"following" db:"-"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Ref returns the display subset of the user.
func (u *User) Ref() UserRef {
	return UserRef{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Role:           u.Role,
	}
}

// UserRef is the denormalized view of a user embedded in other resources.
type UserRef struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email,omitempty" db:"email"`
	ProfilePicture string    `json:"profile_picture" db:"profile_picture"`
	Role           Role      `json:"role,omitempty" db:"role"`
}

// ProfileUpdate carries the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name           *string
	Bio            *string
	Major          *string
	Department     *string
	ProfilePicture *string
	Skills         *StringList
}
