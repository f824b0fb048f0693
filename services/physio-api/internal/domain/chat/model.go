package chat

import (
	"sort"
	"strings"

	"physio-server/services/physio-api/internal/domain/user"
)

// Message is one entry of a conversation's message list.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	ReceiverID     string
	Content        string
	SenderRole     user.Role
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64
	Read      bool
}

// Summary is the per-owner view of a conversation. Each participant has
// their own copy; only the owner's unread counter lives here.
type Summary struct {
	OwnerID         string
	OtherUserID     string
	LastMessage     string
	LastMessageTime int64
	LastSenderID    string
	UnreadCount     int
}

// Conversation is a summary joined with the other participant's profile.
type Conversation struct {
	Summary
	OtherUser *user.User
}

// MarkReadResult reports what MarkRead touched.
type MarkReadResult struct {
	SummaryFound    bool
	MessagesUpdated int64
}

// ConversationID derives the key shared by both participants: the two ids
// sorted and joined with "_". The order of the arguments does not matter.
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}
