package models

import (
	"time"

	"github.com/google/uuid"
)

// Post is a user-authored feed entry with embedded likes and comments.
type Post struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Title     string      `json:"title" db:"title"`
	Content   string      `json:"content" db:"content"`
	AuthorID  uuid.UUID   `json:"-" db:"author_id"`
	Author    *UserRef    `json:"author,omitempty" db:"-"`
	Likes     []uuid.UUID `json:"likes" db:"-"`
	Comments  []Comment   `json:"comments" db:"-"`
	Tags      StringList  `json:"tags" db:"tags"`
	ImageURL  string      `json:"image_url" db:"image_url"`
	Images    StringList  `json:"images" db:"images"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// LikedBy reports whether userID has liked the post.
func (p *Post) LikedBy(userID uuid.UUID) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment finds a comment on the post by ID.
func (p *Post) Comment(id uuid.UUID) *Comment {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return &p.Comments[i]
		}
	}
	return nil
}

// Comment is a reply attached to a post.
type Comment struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	PostID          uuid.UUID  `json:"-" db:"post_id"`
	UserID          uuid.UUID  `json:"-" db:"user_id"`
	User            *UserRef   `json:"user,omitempty" db:"-"`
	Text            string     `json:"text" db:"text"`
	ParentCommentID *uuid.UUID `json:"parent_comment_id,omitempty" db:"parent_comment_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}
