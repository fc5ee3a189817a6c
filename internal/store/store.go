package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
)

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrAlreadyFollowing   = errors.New("already following")
	ErrAlreadyParticipant = errors.New("already a participant")
	ErrEventFull          = errors.New("event is full")
	ErrEventNotFound      = errors.New("event not found")
	ErrUserNotFound       = errors.New("user not found")
)

// DataStore defines the interface for persistent storage of the social graph,
// content and messages. Both PostgresStore and SQLiteStore implement it.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) (bool, error)
	GetUserRefs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserRef, error)
	CountUsers(ctx context.Context) (int64, error)

	// Social graph and profile attachments
	Follow(ctx context.Context, followerID, followeeID uuid.UUID) error
	Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error)
	ListFollowers(ctx context.Context, userID uuid.UUID) ([]models.UserRef, error)
	ListFollowing(ctx context.Context, userID uuid.UUID) ([]models.UserRef, error)
	AddCertification(ctx context.Context, userID uuid.UUID, cert models.Certification) error
	ListCertifications(ctx context.Context, userID uuid.UUID) ([]models.Certification, error)

	// Post operations
	CreatePost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ListPosts(ctx context.Context, authorID *uuid.UUID, limit int) ([]models.Post, error)
	UpdatePost(ctx context.Context, p *models.Post) error
	DeletePost(ctx context.Context, id uuid.UUID) error
	ToggleLike(ctx context.Context, postID, userID uuid.UUID) (liked bool, count int, err error)
	AddComment(ctx context.Context, c *models.Comment) error
	DeleteComment(ctx context.Context, postID, commentID uuid.UUID) (bool, error)
	CountPosts(ctx context.Context) (int64, error)

	// Event operations
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListEvents(ctx context.Context, organizerID *uuid.UUID, limit int) ([]models.Event, error)
	UpdateEvent(ctx context.Context, e *models.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	JoinEvent(ctx context.Context, eventID, userID uuid.UUID) error
	LeaveEvent(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
	CountEvents(ctx context.Context) (int64, error)

	// Job comment operations
	CreateJobComment(ctx context.Context, c *models.JobComment) error
	GetJobComment(ctx context.Context, id uuid.UUID) (*models.JobComment, error)
	ListJobComments(ctx context.Context, jobID string) ([]models.JobComment, error)
	DeleteJobComment(ctx context.Context, id uuid.UUID) error

	// Message operations
	SendMessage(ctx context.Context, msg *models.Message) (uuid.UUID, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	GetMessagesByIDs(ctx context.Context, ids []string) (map[string]models.Message, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	ListConversationMessages(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]models.Message, int, error)
	MarkMessageRead(ctx context.Context, msg *models.Message) error
	DeleteMessage(ctx context.Context, id string) (bool, error)
	CountMessages(ctx context.Context) (int64, error)
}
