package entity

import "errors"

// Domain errors for the chat engine. Validation always precedes any write,
// so a rejected call leaves no partial state behind.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrEmptyContent         = errors.New("message content cannot be empty")
	ErrNotAParticipant      = errors.New("user is not a participant of this conversation")
	ErrForbidden            = errors.New("only the sender may recall a message")
	ErrRecallWindowExpired  = errors.New("recall window has expired")
	ErrWrongVariant         = errors.New("recall method does not match the message variant")
	ErrConversationBlocked  = errors.New("conversation is blocked")
)
