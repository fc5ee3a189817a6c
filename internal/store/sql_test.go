package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
)

func newMockStore(t *testing.T) (*sqlStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newSQLStore(sqlx.NewDb(db, "sqlite3"), func(error) bool { return false }), mock
}

func orderedPair() (uuid.UUID, uuid.UUID) {
	a, b := uuid.New(), uuid.New()
	return models.CanonicalPair(a, b)
}

func TestSendMessageUsesSingleStatementUpserts(t *testing.T) {
	s, mock := newMockStore(t)
	low, high := orderedPair()
	convID := uuid.New()
	msg := &models.Message{
		ID:          "01JABCDEF0000000000000000",
		SenderID:    high,
		RecipientID: low,
		Content:     "hello",
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO messages`)).
		WithArgs(msg.ID, high, low, "hello", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (user_a, user_b) DO UPDATE`)).
		WithArgs(sqlmock.AnyArg(), low, high, msg.ID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(convID.String()))
	mock.ExpectExec(regexp.QuoteMeta(`SET unread_count = conversation_unread.unread_count + 1`)).
		WithArgs(convID, low).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DO NOTHING`)).
		WithArgs(convID, high).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := s.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, convID, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendMessageRollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)
	low, high := orderedPair()
	msg := &models.Message{ID: "01JABCDEF0000000000000001", SenderID: low, RecipientID: high, Content: "x"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO messages`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO conversations`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.SendMessage(context.Background(), msg)
	assert.ErrorContains(t, err, "upsert conversation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkMessageReadDecrementsWithFloor(t *testing.T) {
	s, mock := newMockStore(t)
	low, high := orderedPair()
	msg := &models.Message{ID: "01JABCDEF0000000000000002", SenderID: low, RecipientID: high}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE messages SET is_read = ? WHERE id = ?`)).
		WithArgs(true, msg.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`SET unread_count = unread_count - 1`) + `(?s).*` + regexp.QuoteMeta(`unread_count > 0`)).
		WithArgs(high, low, high).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.MarkMessageRead(context.Background(), msg))
	assert.True(t, msg.Read)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinEventLocksEventRowOnPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := newSQLStore(sqlx.NewDb(db, "pgx"), func(error) bool { return false })
	eventID, userID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT max_participants FROM events WHERE id = $1 FOR UPDATE`)).
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"max_participants"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM event_participants WHERE event_id = $1 AND user_id = $2`)).
		WithArgs(eventID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM event_participants WHERE event_id = $1`)).
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO event_participants`)).
		WithArgs(eventID, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.JoinEvent(context.Background(), eventID, userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinEventReportsMembershipBeforeCapacity(t *testing.T) {
	s, mock := newMockStore(t)
	eventID, userID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT max_participants FROM events WHERE id = ?`)).
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"max_participants"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM event_participants WHERE event_id = ? AND user_id = ?`)).
		WithArgs(eventID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	assert.ErrorIs(t, s.JoinEvent(context.Background(), eventID, userID), ErrAlreadyParticipant)
	assert.NoError(t, mock.ExpectationsWereMet())
}
