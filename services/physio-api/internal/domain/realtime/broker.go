package realtime

import (
	"context"
	"fmt"
)

const (
	EventMessagesChanged      = "messages.changed"
	EventConversationsChanged = "conversations.changed"
	EventDeviceChanged        = "device.changed"
)

// Event tells subscribers that the data behind a topic changed. Subscribers
// reload the full snapshot, so events carry no payload beyond the kind.
type Event struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	At    int64  `json:"at"`
}

// Broker fans change notifications out to every interested subscriber,
// possibly across service replicas.
type Broker interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns a channel that is closed once ctx is done.
	Subscribe(ctx context.Context, topic string) (<-chan Event, error)
	Close() error
}

// ConversationsTopic addresses one user's conversation summaries.
func ConversationsTopic(userID string) string {
	return "conversations." + userID
}

// MessagesTopic addresses the message list of one conversation.
func MessagesTopic(conversationID string) string {
	return "messages." + conversationID
}

// DeviceTopic addresses one patient's session on one device.
func DeviceTopic(patientID, kind string) string {
	return fmt.Sprintf("device.%s.%s", patientID, kind)
}
