package messaging

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrMissingFields  = errors.New("recipient and content are required")
	ErrEmptyContent   = errors.New("message content cannot be empty")
	ErrContentTooLong = fmt.Errorf("message content cannot exceed %d characters", MaxContentLength)
	ErrSelfMessage    = errors.New("cannot send a message to yourself")
)

// Lookup errors.
var (
	ErrRecipientNotFound    = errors.New("recipient not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// Authorization errors.
var (
	ErrNotParticipant = errors.New("access denied")
	ErrNotRecipient   = errors.New("only the recipient can mark a message as read")
	ErrNotSender      = errors.New("not authorized to delete this message")
)

// ErrRateLimited is returned when the sender exceeded the hourly message budget.
var ErrRateLimited = errors.New("too many messages, please try again later")
