package responses

import (
	"physio-server/services/physio-api/internal/domain/chat"
	"physio-server/services/physio-api/internal/utils/functional"
)

type MessageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	Content        string `json:"content"`
	SenderRole     string `json:"sender_role"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
	Read      bool  `json:"read"`
}

func NewMessageResponse(m *chat.Message) *MessageResponse {
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		SenderRole:     string(m.SenderRole),
		Timestamp:      m.Timestamp,
		Read:           m.Read,
	}
}

type MessageListResponse struct {
	Data []*MessageResponse `json:"data"`
}

func NewMessageListResponse(messages []*chat.Message) *MessageListResponse {
	return &MessageListResponse{Data: functional.Map(messages, NewMessageResponse)}
}

type ConversationResponse struct {
	OtherUserID     string        `json:"other_user_id"`
	OtherUser       *UserResponse `json:"other_user"`
	LastMessage     string        `json:"last_message"`
	LastMessageTime int64         `json:"last_message_time"`
	LastSenderID    string        `json:"last_sender_id"`
	UnreadCount     int           `json:"unread_count"`
}

type ConversationListResponse struct {
	Data []*ConversationResponse `json:"data"`
}

func NewConversationListResponse(conversations []*chat.Conversation) *ConversationListResponse {
	return &ConversationListResponse{Data: functional.Map(conversations, func(conv *chat.Conversation) *ConversationResponse {
		return &ConversationResponse{
			OtherUserID:     conv.OtherUserID,
			OtherUser:       NewUserResponse(conv.OtherUser),
			LastMessage:     conv.LastMessage,
			LastMessageTime: conv.LastMessageTime,
			LastSenderID:    conv.LastSenderID,
			UnreadCount:     conv.UnreadCount,
		}
	})}
}

type UnreadCountResponse struct {
	Unread int `json:"unread"`
}
