package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
	"github.com/Addy-9595/northeasternconnect-backend/internal/ratelimit"
	"github.com/Addy-9595/northeasternconnect-backend/internal/store"
)

type fixture struct {
	svc   *Service
	store *store.SQLiteStore
	clock time.Time
}

func newFixture(t *testing.T, limiter ratelimit.Limiter) *fixture {
	t.Helper()
	ds, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(ds.Close)

	f := &fixture{store: ds, clock: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	f.svc = NewService(ds, limiter, zerolog.Nop())
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	return f
}

func (f *fixture) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@northeastern.edu", PasswordHash: "x", Role: models.RoleStudent}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u.ID
}

func (f *fixture) conversationWith(t *testing.T, userID, otherID uuid.UUID) models.ConversationSummary {
	t.Helper()
	convs, err := f.svc.Conversations(context.Background(), userID)
	require.NoError(t, err)
	for _, c := range convs {
		if c.OtherUser.ID == otherID {
			return c
		}
	}
	t.Fatalf("no conversation between %s and %s", userID, otherID)
	return models.ConversationSummary{}
}

func TestSendFirstMessage(t *testing.T) {
	f := newFixture(t, ratelimit.NewMemory(DefaultMessagesPerHour, RateWindow))
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")

	msg, err := f.svc.Send(ctx, a, b, "  hello bob  ")
	require.NoError(t, err)
	assert.False(t, msg.Read)
	assert.Equal(t, "hello bob", msg.Content)
	require.NotNil(t, msg.Sender)
	require.NotNil(t, msg.Recipient)
	assert.Equal(t, "alice", msg.Sender.Name)
	assert.Equal(t, "bob", msg.Recipient.Name)

	toB := f.conversationWith(t, b, a)
	assert.Equal(t, 1, toB.UnreadCount)
	require.NotNil(t, toB.LastMessage)
	assert.Equal(t, msg.ID, toB.LastMessage.ID)

	fromA := f.conversationWith(t, a, b)
	assert.Equal(t, 0, fromA.UnreadCount)
	assert.Equal(t, toB.ID, fromA.ID)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")

	tests := []struct {
		name      string
		recipient uuid.UUID
		content   string
		want      error
	}{
		{"missing recipient", uuid.Nil, "hi", ErrMissingFields},
		{"missing content", b, "", ErrMissingFields},
		{"blank content", b, "   \n\t", ErrEmptyContent},
		{"too long", b, strings.Repeat("é", MaxContentLength+1), ErrContentTooLong},
		{"self", a, "hi", ErrSelfMessage},
		{"unknown recipient", uuid.New(), "hi", ErrRecipientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Send(ctx, a, tt.recipient, tt.content)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := f.svc.Send(ctx, a, b, strings.Repeat("é", MaxContentLength))
	assert.NoError(t, err, "exactly the maximum length is accepted")

	n, err := f.store.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSendRateLimit(t *testing.T) {
	f := newFixture(t, ratelimit.NewMemory(DefaultMessagesPerHour, RateWindow))
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")

	for i := 0; i < DefaultMessagesPerHour; i++ {
		_, err := f.svc.Send(ctx, a, b, "ping")
		require.NoError(t, err, "message %d", i+1)
	}

	_, err := f.svc.Send(ctx, a, b, "one too many")
	assert.ErrorIs(t, err, ErrRateLimited)

	n, err := f.store.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultMessagesPerHour), n, "rejected send performs no writes")
	assert.Equal(t, DefaultMessagesPerHour, f.conversationWith(t, b, a).UnreadCount)

	_, err = f.svc.Send(ctx, b, a, "bob has his own budget")
	assert.NoError(t, err)

	f.clock = f.clock.Add(RateWindow)
	_, err = f.svc.Send(ctx, a, b, "window has moved on")
	assert.NoError(t, err)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("redis unavailable")
}

func TestSendFailsOpenWhenLimiterErrors(t *testing.T) {
	f := newFixture(t, brokenLimiter{})
	a, b := f.user(t, "alice"), f.user(t, "bob")

	_, err := f.svc.Send(context.Background(), a, b, "still delivered")
	assert.NoError(t, err)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")

	first, err := f.svc.Send(ctx, a, b, "one")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, a, b, "two")
	require.NoError(t, err)
	assert.Equal(t, 2, f.conversationWith(t, b, a).UnreadCount)

	_, err = f.svc.MarkRead(ctx, first.ID, a)
	assert.ErrorIs(t, err, ErrNotRecipient)

	read, err := f.svc.MarkRead(ctx, first.ID, b)
	require.NoError(t, err)
	assert.True(t, read.Read)
	assert.Equal(t, 1, f.conversationWith(t, b, a).UnreadCount)

	_, err = f.svc.MarkRead(ctx, first.ID, b)
	require.NoError(t, err)
	_, err = f.svc.MarkRead(ctx, first.ID, b)
	require.NoError(t, err)
	assert.Equal(t, 0, f.conversationWith(t, b, a).UnreadCount, "never negative")

	_, err = f.svc.MarkRead(ctx, "01HNOTAREALMESSAGE0000000", b)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessagesPagination(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a, b, c := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	total := PageSize + 5
	for i := 0; i < total; i++ {
		from, to := a, b
		if i%3 == 0 {
			from, to = b, a
		}
		_, err := f.svc.Send(ctx, from, to, "msg")
		require.NoError(t, err)
	}
	convID := f.conversationWith(t, a, b).ID

	page1, err := f.svc.Messages(ctx, convID, a, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page1.Pagination.Page)
	assert.Equal(t, PageSize, page1.Pagination.Limit)
	assert.Equal(t, 2, page1.Pagination.TotalPages)
	assert.Equal(t, total, page1.Pagination.TotalMessages)
	require.Len(t, page1.Messages, PageSize)
	for i := 1; i < len(page1.Messages); i++ {
		assert.True(t, page1.Messages[i-1].CreatedAt.Before(page1.Messages[i].CreatedAt), "chronological order")
	}
	assert.NotNil(t, page1.Messages[0].Sender)

	page2, err := f.svc.Messages(ctx, convID, b, 2)
	require.NoError(t, err)
	require.Len(t, page2.Messages, 5)
	assert.True(t, page2.Messages[4].CreatedAt.Before(page1.Messages[0].CreatedAt), "page 2 holds older messages")

	_, err = f.svc.Messages(ctx, convID, c, 1)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.svc.Messages(ctx, uuid.New(), a, 1)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	admin := f.user(t, "admin")

	msg, err := f.svc.Send(ctx, a, b, "regret")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Delete(ctx, msg.ID, b, models.RoleStudent), ErrNotSender)
	require.NoError(t, f.svc.Delete(ctx, msg.ID, a, models.RoleStudent))
	assert.ErrorIs(t, f.svc.Delete(ctx, msg.ID, a, models.RoleStudent), ErrMessageNotFound)

	// The aggregate is left untouched by deletion.
	conv := f.conversationWith(t, b, a)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Nil(t, conv.LastMessage)

	other, err := f.svc.Send(ctx, b, a, "moderated")
	require.NoError(t, err)
	assert.NoError(t, f.svc.Delete(ctx, other.ID, admin, models.RoleAdmin))
}

func TestConversationsDropUnresolvableParticipants(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a, b, c := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	_, err := f.svc.Send(ctx, a, b, "to bob")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, c, a, "from carol")
	require.NoError(t, err)

	convs, err := f.svc.Conversations(ctx, a)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "carol", convs[0].OtherUser.Name, "newest activity first")

	_, err = f.store.DeleteUser(ctx, b)
	require.NoError(t, err)

	convs, err = f.svc.Conversations(ctx, a)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, c, convs[0].OtherUser.ID)
}
