package dbschema

import (
	"physio-server/services/physio-api/internal/domain/chat"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Message{}, ConversationSummary{})
}

// Message is one stored chat message.
type Message struct {
	ID             string `gorm:"type:varchar(64);primaryKey"`
	ConversationID string `gorm:"type:varchar(160);not null;index:idx_messages_conversation_ts,priority:1"`
	SenderID       string `gorm:"type:varchar(64);not null"`
	ReceiverID     string `gorm:"type:varchar(64);not null"`
	Content        string `gorm:"type:text;not null"`
	SenderRole     string `gorm:"type:varchar(16);not null"`
	SentAt         int64  `gorm:"not null;index:idx_messages_conversation_ts,priority:2"`
	IsRead         bool   `gorm:"not null;default:false"`
}

func (Message) TableName() string { return "messages" }

// NewSchemaMessage converts a domain message.
func NewSchemaMessage(m *chat.Message) *Message {
	if m == nil {
		return nil
	}
	return &Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		SenderRole:     string(m.SenderRole),
		SentAt:         m.Timestamp,
		IsRead:         m.Read,
	}
}

// EtoD converts a stored message back.
func (m *Message) EtoD() *chat.Message {
	if m == nil {
		return nil
	}
	return &chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		SenderRole:     user.Role(m.SenderRole),
		Timestamp:      m.SentAt,
		Read:           m.IsRead,
	}
}

// ConversationSummary is one participant's view of a conversation.
type ConversationSummary struct {
	OwnerID         string `gorm:"type:varchar(64);primaryKey"`
	OtherUserID     string `gorm:"type:varchar(64);primaryKey"`
	LastMessage     string `gorm:"type:text;not null;default:''"`
	LastMessageTime int64  `gorm:"not null;default:0"`
	LastSenderID    string `gorm:"type:varchar(64);not null;default:''"`
	UnreadCount     int    `gorm:"not null;default:0"`
}

func (ConversationSummary) TableName() string { return "conversation_summaries" }

// EtoD converts a stored summary back.
func (s *ConversationSummary) EtoD() *chat.Summary {
	if s == nil {
		return nil
	}
	return &chat.Summary{
		OwnerID:         s.OwnerID,
		OtherUserID:     s.OtherUserID,
		LastMessage:     s.LastMessage,
		LastMessageTime: s.LastMessageTime,
		LastSenderID:    s.LastSenderID,
		UnreadCount:     s.UnreadCount,
	}
}
