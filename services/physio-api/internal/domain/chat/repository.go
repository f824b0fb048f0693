package chat

import "context"

// Repository stores messages and conversation summaries.
type Repository interface {
	// SaveMessage appends msg and, in the same unit of work, upserts both
	// summaries: the sender's with unread 0 and the receiver's with its
	// unread counter incremented by exactly one.
	SaveMessage(ctx context.Context, msg *Message) error
	// ListMessages returns the last limit messages ordered by timestamp ascending.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	FindMessage(ctx context.Context, conversationID, messageID string) (*Message, error)
	DeleteMessage(ctx context.Context, conversationID, messageID string) error

	ListSummaries(ctx context.Context, ownerID string) ([]*Summary, error)
	// MarkRead zeroes the owner's counter for the pair if the summary exists
	// and flags the messages addressed to the owner as read.
	MarkRead(ctx context.Context, ownerID, otherUserID string) (MarkReadResult, error)
	DeleteSummary(ctx context.Context, ownerID, otherUserID string) error
	SumUnread(ctx context.Context, ownerID string) (int, error)
}
