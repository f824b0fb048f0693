package handlers

import (
	"context"

	"physio-server/services/physio-api/internal/domain/chat"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/interfaces/httpserver/responses"
)

// ChatHandler serves conversations and messages between patients and doctors.
type ChatHandler struct {
	chat *chat.Service
}

func NewChatHandler(chatService *chat.Service) *ChatHandler {
	return &ChatHandler{chat: chatService}
}

func (h *ChatHandler) Conversations(ctx context.Context, userID string, role user.Role) (*responses.ConversationListResponse, error) {
	conversations, err := h.chat.GetConversations(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	return responses.NewConversationListResponse(conversations), nil
}

func (h *ChatHandler) UnreadCount(ctx context.Context, userID string) *responses.UnreadCountResponse {
	return &responses.UnreadCountResponse{Unread: h.chat.GetTotalUnreadCount(ctx, userID)}
}

func (h *ChatHandler) DeleteConversation(ctx context.Context, userID, otherUserID string) error {
	return h.chat.DeleteConversation(ctx, userID, otherUserID)
}

func (h *ChatHandler) Messages(ctx context.Context, userID, otherUserID string, limit int) (*responses.MessageListResponse, error) {
	messages, err := h.chat.GetMessages(ctx, userID, otherUserID, limit)
	if err != nil {
		return nil, err
	}
	return responses.NewMessageListResponse(messages), nil
}

func (h *ChatHandler) Send(ctx context.Context, senderID, receiverID, content string) (*responses.MessageResponse, error) {
	msg, err := h.chat.SendMessage(ctx, senderID, receiverID, content)
	if err != nil {
		return nil, err
	}
	return responses.NewMessageResponse(msg), nil
}

func (h *ChatHandler) MarkRead(ctx context.Context, userID, otherUserID string) error {
	return h.chat.MarkMessagesAsRead(ctx, userID, otherUserID)
}

func (h *ChatHandler) DeleteMessage(ctx context.Context, userID, otherUserID, messageID string) error {
	return h.chat.DeleteMessage(ctx, userID, otherUserID, messageID)
}

func (h *ChatHandler) SubscribeMessages(ctx context.Context, userID, otherUserID string) (<-chan []*chat.Message, error) {
	return h.chat.SubscribeToMessages(ctx, userID, otherUserID)
}

func (h *ChatHandler) SubscribeConversations(ctx context.Context, userID string, role user.Role) (<-chan []*chat.Conversation, error) {
	return h.chat.SubscribeToConversations(ctx, userID, role)
}
