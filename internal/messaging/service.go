// Package messaging implements direct messages between users and the
// per-pair conversation summaries derived from them.
package messaging

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Addy-9595/northeasternconnect-backend/internal/crypto"
	"github.com/Addy-9595/northeasternconnect-backend/internal/metrics"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
	"github.com/Addy-9595/northeasternconnect-backend/internal/ratelimit"
)

const (
	// PageSize is the number of messages per page of a conversation.
	PageSize = 50
	// MaxContentLength is the longest message accepted, in characters.
	MaxContentLength = 1000
	// DefaultMessagesPerHour is the default per-sender send budget.
	DefaultMessagesPerHour = 50
	// RateWindow is the trailing window the send budget applies to.
	RateWindow = time.Hour
)

// Store is the persistence the messaging subsystem needs.
type Store interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserRefs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserRef, error)
	SendMessage(ctx context.Context, msg *models.Message) (uuid.UUID, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	GetMessagesByIDs(ctx context.Context, ids []string) (map[string]models.Message, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	ListConversationMessages(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]models.Message, int, error)
	MarkMessageRead(ctx context.Context, msg *models.Message) error
	DeleteMessage(ctx context.Context, id string) (bool, error)
}

// Pagination describes one page of a conversation.
type Pagination struct {
	Page          int `json:"page"`
	Limit         int `json:"limit"`
	TotalPages    int `json:"total_pages"`
	TotalMessages int `json:"total_messages"`
}

// MessagePage is a page of messages in chronological order.
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// Service coordinates message writes with the conversation aggregate and the
// per-sender rate limit.
type Service struct {
	store   Store
	limiter ratelimit.Limiter
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a messaging service. limiter guards Send.
func NewService(store Store, limiter ratelimit.Limiter, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// RateLimitKey is the limiter key for a sender's messages.
func RateLimitKey(senderID uuid.UUID) string {
	return "messages:" + senderID.String()
}

// Send validates and persists a message from senderID to recipientID and
// updates their conversation. A rejected send performs no writes.
func (s *Service) Send(ctx context.Context, senderID, recipientID uuid.UUID, content string) (*models.Message, error) {
	if recipientID == uuid.Nil || content == "" {
		return nil, ErrMissingFields
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}
	if recipientID == senderID {
		return nil, ErrSelfMessage
	}

	recipient, err := s.store.GetUserByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, ErrRecipientNotFound
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	if allowed := s.allow(ctx, senderID, now); !allowed {
		metrics.RateLimitHits.WithLabelValues("messages").Inc()
		s.logger.Warn().
			Str("type", "security").
			Str("event", "message_rate_limit_exceeded").
			Str("sender", senderID.String()).
			Msg("message rate limit exceeded")
		return nil, ErrRateLimited
	}

	msg := &models.Message{
		ID:          crypto.NewULID(now),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   now,
	}
	if _, err := s.store.SendMessage(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	if err := s.populate(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// allow consults the limiter. Limiter failures let the send through.
func (s *Service) allow(ctx context.Context, senderID uuid.UUID, now time.Time) bool {
	if s.limiter == nil {
		return true
	}
	allowed, err := s.limiter.Allow(ctx, RateLimitKey(senderID), now)
	if err != nil {
		s.logger.Warn().Err(err).Str("sender", senderID.String()).Msg("message rate limiter unavailable")
		return true
	}
	return allowed
}

// Conversations lists userID's conversations, most recently active first,
// each reduced to the other participant, the last message and userID's
// unread count. Conversations whose other participant no longer resolves
// are left out.
func (s *Service) Conversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	others := make([]uuid.UUID, 0, len(convs))
	lastIDs := make([]string, 0, len(convs))
	for i := range convs {
		others = append(others, other(&convs[i], userID))
		lastIDs = append(lastIDs, convs[i].LastMessageID)
	}

	refs, err := s.store.GetUserRefs(ctx, others)
	if err != nil {
		return nil, err
	}
	lastMessages, err := s.store.GetMessagesByIDs(ctx, lastIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		ref, ok := refs[other(c, userID)]
		if !ok {
			continue
		}
		summary := models.ConversationSummary{
			ID:          c.ID,
			OtherUser:   ref,
			UnreadCount: c.Unread(userID),
			UpdatedAt:   c.UpdatedAt,
		}
		if last, ok := lastMessages[c.LastMessageID]; ok {
			summary.LastMessage = &last
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Messages returns one page of a conversation in chronological order. Only
// participants may read it. Pages start at 1; smaller values mean 1.
func (s *Service) Messages(ctx context.Context, conversationID, userID uuid.UUID, page int) (*MessagePage, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if page < 1 {
		page = 1
	}

	a, b := conv.Participants[0], conv.Participants[1]
	msgs, total, err := s.store.ListConversationMessages(ctx, a, b, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	ptrs := make([]*models.Message, len(msgs))
	for i := range msgs {
		ptrs[i] = &msgs[i]
	}
	if err := s.populate(ctx, ptrs...); err != nil {
		return nil, err
	}

	return &MessagePage{
		Messages: msgs,
		Pagination: Pagination{
			Page:          page,
			Limit:         PageSize,
			TotalPages:    (total + PageSize - 1) / PageSize,
			TotalMessages: total,
		},
	}, nil
}

// MarkRead marks a message read on behalf of its recipient and decrements
// the recipient's unread counter, never below zero.
func (s *Service) MarkRead(ctx context.Context, messageID string, userID uuid.UUID) (*models.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.RecipientID != userID {
		return nil, ErrNotRecipient
	}
	if err := s.store.MarkMessageRead(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Delete removes a message. Only its sender or an administrator may do so.
// The conversation's last-message pointer and unread counters are left as
// they were.
func (s *Service) Delete(ctx context.Context, messageID string, userID uuid.UUID, role models.Role) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderID != userID && role != models.RoleAdmin {
		return ErrNotSender
	}
	if _, err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	return nil
}

// populate fills the sender and recipient references of msgs.
func (s *Service) populate(ctx context.Context, msgs ...*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, 2)
	seen := make(map[uuid.UUID]bool)
	for _, m := range msgs {
		for _, id := range []uuid.UUID{m.SenderID, m.RecipientID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	refs, err := s.store.GetUserRefs(ctx, ids)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if ref, ok := refs[m.SenderID]; ok {
			m.Sender = &ref
		}
		if ref, ok := refs[m.RecipientID]; ok {
			m.Recipient = &ref
		}
	}
	return nil
}

func other(c *models.Conversation, userID uuid.UUID) uuid.UUID {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}
