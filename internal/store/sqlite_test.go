package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Addy-9595/northeasternconnect-backend/internal/crypto"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func createUser(t *testing.T, s DataStore, name string) *models.User {
	t.Helper()
	u := &models.User{
		Name:         name,
		Email:        name + "@northeastern.edu",
		PasswordHash: "hash",
		Role:         models.RoleStudent,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func send(t *testing.T, s DataStore, from, to uuid.UUID, content string, at time.Time) (*models.Message, uuid.UUID) {
	t.Helper()
	msg := &models.Message{
		ID:          crypto.NewULID(at),
		SenderID:    from,
		RecipientID: to,
		Content:     content,
		CreatedAt:   at.UTC(),
	}
	convID, err := s.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	return msg, convID
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := createUser(t, s, "ada")
	assert.NotEqual(t, uuid.Nil, u.ID)

	got, err := s.GetUserByEmail(ctx, "  ADA@Northeastern.edu ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, models.RoleStudent, got.Role)
	assert.Equal(t, models.StringList{}, got.Skills)

	err = s.CreateUser(ctx, &models.User{Name: "dup", Email: "ada@northeastern.edu", PasswordHash: "x", Role: models.RoleStudent})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	bio := "compilers"
	skills := models.StringList{"Go", "SQL"}
	updated, err := s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{Bio: &bio, Skills: &skills})
	require.NoError(t, err)
	assert.Equal(t, "compilers", updated.Bio)
	assert.Equal(t, "ada", updated.Name)
	assert.Equal(t, skills, updated.Skills)

	missing, err := s.GetUserByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	deleted, err := s.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFollowAndCertifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "alice")
	b := createUser(t, s, "bob")

	require.NoError(t, s.Follow(ctx, a.ID, b.ID))
	assert.ErrorIs(t, s.Follow(ctx, a.ID, b.ID), ErrAlreadyFollowing)

	followers, err := s.ListFollowers(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "alice", followers[0].Name)

	following, err := s.ListFollowing(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, b.ID, following[0].ID)

	removed, err := s.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	cert := models.Certification{Platform: "AWS", CertificateName: "AWS Certification", Issuer: "Amazon Web Services", CredentialID: "ABC"}
	require.NoError(t, s.AddCertification(ctx, a.ID, cert))
	certs, err := s.ListCertifications(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.Certification{cert}, certs)
}

func TestPostsLikesComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	author := createUser(t, s, "author")
	reader := createUser(t, s, "reader")

	p := &models.Post{Title: "Hello", Content: "World", AuthorID: author.ID, Tags: models.StringList{"intro"}}
	require.NoError(t, s.CreatePost(ctx, p))

	liked, count, err := s.ToggleLike(ctx, p.ID, reader.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, count)

	c := &models.Comment{PostID: p.ID, UserID: reader.ID, Text: "nice"}
	require.NoError(t, s.AddComment(ctx, c))
	reply := &models.Comment{PostID: p.ID, UserID: author.ID, Text: "thanks", ParentCommentID: &c.ID}
	require.NoError(t, s.AddComment(ctx, reply))

	got, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Author)
	assert.Equal(t, "author", got.Author.Name)
	assert.True(t, got.LikedBy(reader.ID))
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "reader", got.Comments[0].User.Name)
	require.NotNil(t, got.Comments[1].ParentCommentID)
	assert.Equal(t, c.ID, *got.Comments[1].ParentCommentID)
	assert.Equal(t, models.StringList{"intro"}, got.Tags)

	liked, count, err = s.ToggleLike(ctx, p.ID, reader.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Zero(t, count)

	removed, err := s.DeleteComment(ctx, p.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	posts, err := s.ListPosts(ctx, &author.ID, 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Len(t, posts[0].Comments, 1)
	assert.Empty(t, posts[0].Likes)
}

func TestJoinEventCapacity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	organizer := createUser(t, s, "org")
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")

	limit := 1
	e := &models.Event{
		Title:           "Hackathon",
		Description:     "Build things",
		Date:            time.Now().Add(48 * time.Hour),
		Location:        "Snell",
		OrganizerID:     organizer.ID,
		MaxParticipants: &limit,
	}
	require.NoError(t, s.CreateEvent(ctx, e))

	require.NoError(t, s.JoinEvent(ctx, e.ID, a.ID))
	assert.ErrorIs(t, s.JoinEvent(ctx, e.ID, a.ID), ErrAlreadyParticipant)
	assert.ErrorIs(t, s.JoinEvent(ctx, e.ID, b.ID), ErrEventFull)

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Organizer)
	assert.Equal(t, "org", got.Organizer.Name)
	assert.True(t, got.HasParticipant(a.ID))
	assert.False(t, got.HasParticipant(b.ID))

	left, err := s.LeaveEvent(ctx, e.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, left)
	require.NoError(t, s.JoinEvent(ctx, e.ID, b.ID))
}

func TestJoinEventMissingRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	organizer := createUser(t, s, "org")
	gone := createUser(t, s, "gone")

	e := &models.Event{
		Title:       "Career fair",
		Description: "Meet employers",
		Date:        time.Now().Add(72 * time.Hour),
		Location:    "Curry",
		OrganizerID: organizer.ID,
	}
	require.NoError(t, s.CreateEvent(ctx, e))

	deleted, err := s.DeleteUser(ctx, gone.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	assert.ErrorIs(t, s.JoinEvent(ctx, e.ID, gone.ID), ErrUserNotFound)
	assert.ErrorIs(t, s.JoinEvent(ctx, uuid.New(), organizer.ID), ErrEventNotFound)
}

func TestJobComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "reviewer")

	rating := 4
	c := &models.JobComment{JobID: "job-42", UserID: u.ID, Text: "Good team", Rating: &rating}
	require.NoError(t, s.CreateJobComment(ctx, c))

	comments, err := s.ListJobComments(ctx, "job-42")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "reviewer", comments[0].User.Name)
	require.NotNil(t, comments[0].Rating)
	assert.Equal(t, 4, *comments[0].Rating)

	require.NoError(t, s.DeleteJobComment(ctx, c.ID))
	got, err := s.GetJobComment(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSendMessageCreatesOneConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")
	start := time.Now()

	_, conv1 := send(t, s, a.ID, b.ID, "hi", start)
	_, conv2 := send(t, s, a.ID, b.ID, "there", start.Add(time.Second))
	last, conv3 := send(t, s, b.ID, a.ID, "hey", start.Add(2*time.Second))
	assert.Equal(t, conv1, conv2)
	assert.Equal(t, conv1, conv3)

	conv, err := s.GetConversation(ctx, conv1)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.True(t, conv.HasParticipant(a.ID))
	assert.True(t, conv.HasParticipant(b.ID))
	assert.Equal(t, last.ID, conv.LastMessageID)
	assert.Equal(t, 2, conv.Unread(b.ID))
	assert.Equal(t, 1, conv.Unread(a.ID))

	convs, err := s.ListConversations(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestUnreadCountEqualsMessagesSent(t *testing.T) {
	s := newTestStore(t)
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")
	start := time.Now()

	const n = 7
	var convID uuid.UUID
	for i := 0; i < n; i++ {
		_, convID = send(t, s, a.ID, b.ID, "ping", start.Add(time.Duration(i)*time.Millisecond))
	}

	conv, err := s.GetConversation(context.Background(), convID)
	require.NoError(t, err)
	assert.Equal(t, n, conv.Unread(b.ID))
	assert.Equal(t, 0, conv.Unread(a.ID))
	_, hasSender := conv.UnreadCount[a.ID]
	assert.True(t, hasSender, "sender entry should be zero-initialized")
}

func TestMarkMessageReadFloorsAtZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")

	msg, convID := send(t, s, a.ID, b.ID, "hi", time.Now())

	require.NoError(t, s.MarkMessageRead(ctx, msg))
	require.NoError(t, s.MarkMessageRead(ctx, msg))

	conv, err := s.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.Unread(b.ID))

	got, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
}

func TestListConversationMessagesPaginates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")
	c := createUser(t, s, "c")
	start := time.Now()

	for i := 0; i < 5; i++ {
		from, to := a.ID, b.ID
		if i%2 == 1 {
			from, to = b.ID, a.ID
		}
		send(t, s, from, to, "m", start.Add(time.Duration(i)*time.Second))
	}
	send(t, s, a.ID, c.ID, "other", start)

	page, total, err := s.ListConversationMessages(ctx, a.ID, b.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt), "newest first")

	page, _, err = s.ListConversationMessages(ctx, b.ID, a.ID, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestDeleteMessageLeavesConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")

	msg, convID := send(t, s, a.ID, b.ID, "oops", time.Now())
	deleted, err := s.DeleteMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	conv, err := s.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, conv.LastMessageID)
	assert.Equal(t, 1, conv.Unread(b.ID))

	byID, err := s.GetMessagesByIDs(ctx, []string{msg.ID})
	require.NoError(t, err)
	assert.Empty(t, byID)
}

func TestDeleteUserKeepsMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a")
	b := createUser(t, s, "b")
	send(t, s, a.ID, b.ID, "hi", time.Now())

	_, err := s.DeleteUser(ctx, b.ID)
	require.NoError(t, err)

	convs, err := s.ListConversations(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
	n, err := s.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
