package v1

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"physio-server/services/physio-api/internal/domain/chat"
	"physio-server/services/physio-api/internal/infrastructure/auth"
	"physio-server/services/physio-api/internal/interfaces/httpserver/handlers"
	"physio-server/services/physio-api/internal/interfaces/httpserver/requests"
	"physio-server/services/physio-api/internal/interfaces/httpserver/responses"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

type ChatRoute struct {
	handler  *handlers.ChatHandler
	streamer *handlers.Streamer
}

func NewChatRoute(handler *handlers.ChatHandler, streamer *handlers.Streamer) *ChatRoute {
	return &ChatRoute{handler: handler, streamer: streamer}
}

func (route *ChatRoute) RegisterRouter(router gin.IRouter) {
	conversations := router.Group("/conversations")
	conversations.GET("", route.listConversations)
	conversations.GET("/unread", route.unreadCount)
	conversations.GET("/stream", route.streamConversations)
	conversations.DELETE("/:user_id", route.deleteConversation)
	conversations.GET("/:user_id/messages", route.listMessages)
	conversations.POST("/:user_id/messages", route.sendMessage)
	conversations.POST("/:user_id/read", route.markRead)
	conversations.GET("/:user_id/messages/stream", route.streamMessages)
	conversations.DELETE("/:user_id/messages/:message_id", route.deleteMessage)
}

// listConversations godoc
// @Summary      List conversations
// @Description  The caller's conversations with users of the opposite role, newest first.
// @Tags         Conversations
// @Produce      json
// @Success      200 {object} responses.ConversationListResponse
// @Failure      401 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations [get]
func (route *ChatRoute) listConversations(c *gin.Context) {
	resp, err := route.handler.Conversations(c.Request.Context(), auth.CurrentUserID(c), auth.CurrentRole(c))
	if err != nil {
		responses.HandleError(c, err, "failed to list conversations")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// unreadCount godoc
// @Summary      Total unread messages
// @Tags         Conversations
// @Produce      json
// @Success      200 {object} responses.UnreadCountResponse
// @Security     BearerAuth
// @Router       /v1/conversations/unread [get]
func (route *ChatRoute) unreadCount(c *gin.Context) {
	c.JSON(http.StatusOK, route.handler.UnreadCount(c.Request.Context(), auth.CurrentUserID(c)))
}

// streamConversations godoc
// @Summary      Stream conversations
// @Description  WebSocket. Sends the full conversation list now and after every change. The token may be passed as access_token.
// @Tags         Conversations
// @Param        access_token query string false "Bearer token for browsers"
// @Success      101 {object} handlers.StreamFrame
// @Failure      401 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/stream [get]
func (route *ChatRoute) streamConversations(c *gin.Context) {
	userID, role := auth.CurrentUserID(c), auth.CurrentRole(c)
	handlers.Stream(route.streamer, c, "conversations",
		func(ctx context.Context) (<-chan []*chat.Conversation, error) {
			return route.handler.SubscribeConversations(ctx, userID, role)
		},
		func(list []*chat.Conversation) any {
			return responses.NewConversationListResponse(list).Data
		},
		nil,
	)
}

// deleteConversation godoc
// @Summary      Delete a conversation
// @Description  Removes the conversation from the caller's list only.
// @Tags         Conversations
// @Produce      json
// @Param        user_id path string true "Other participant"
// @Success      200 {object} responses.StatusResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{user_id} [delete]
func (route *ChatRoute) deleteConversation(c *gin.Context) {
	if err := route.handler.DeleteConversation(c.Request.Context(), auth.CurrentUserID(c), c.Param("user_id")); err != nil {
		responses.HandleError(c, err, "failed to delete conversation")
		return
	}
	c.JSON(http.StatusOK, responses.OK)
}

// listMessages godoc
// @Summary      List messages
// @Description  The latest messages with the other participant, oldest first.
// @Tags         Conversations
// @Produce      json
// @Param        user_id path string true "Other participant"
// @Param        limit query int false "Number of messages (default 50, max 200)"
// @Success      200 {object} responses.MessageListResponse
// @Failure      400 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{user_id}/messages [get]
func (route *ChatRoute) listMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "limit must be a positive number")
			return
		}
		limit = parsed
	}

	resp, err := route.handler.Messages(c.Request.Context(), auth.CurrentUserID(c), c.Param("user_id"), limit)
	if err != nil {
		responses.HandleError(c, err, "failed to list messages")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// sendMessage godoc
// @Summary      Send a message
// @Tags         Conversations
// @Accept       json
// @Produce      json
// @Param        user_id path string true "Receiver"
// @Param        request body requests.SendMessageRequest true "Message"
// @Success      201 {object} responses.MessageResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{user_id}/messages [post]
func (route *ChatRoute) sendMessage(c *gin.Context) {
	var req requests.SendMessageRequest
	if err := requests.BindJSON(c, &req); err != nil {
		responses.HandleError(c, err, "invalid message")
		return
	}

	resp, err := route.handler.Send(c.Request.Context(), auth.CurrentUserID(c), c.Param("user_id"), req.Content)
	if err != nil {
		responses.HandleError(c, err, "failed to send message")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// markRead godoc
// @Summary      Mark messages as read
// @Tags         Conversations
// @Produce      json
// @Param        user_id path string true "Other participant"
// @Success      200 {object} responses.StatusResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{user_id}/read [post]
func (route *ChatRoute) markRead(c *gin.Context) {
	if err := route.handler.MarkRead(c.Request.Context(), auth.CurrentUserID(c), c.Param("user_id")); err != nil {
		responses.HandleError(c, err, "failed to mark messages as read")
		return
	}
	c.JSON(http.StatusOK, responses.OK)
}

// streamMessages godoc
// @Summary      Stream messages
// @Description  WebSocket. Sends the message list now and after every change. With mark_read=true the thread is marked read after each delivery.
// @Tags         Conversations
// @Param        user_id path string true "Other participant"
// @Param        mark_read query bool false "Mark delivered messages as read (default false)"
// @Param        access_token query string false "Bearer token for browsers"
// @Success      101 {object} handlers.StreamFrame
// @Failure      401 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{user_id}/messages/stream [get]
func (route *ChatRoute) streamMessages(c *gin.Context) {
	userID, otherUserID := auth.CurrentUserID(c), c.Param("user_id")

	var afterWrite func(ctx context.Context) error
	if c.Query("mark_read") == "true" {
		afterWrite = func(ctx context.Context) error {
			return route.handler.MarkRead(ctx, userID, otherUserID)
		}
	}

	handlers.Stream(route.streamer, c, "messages",
		func(ctx context.Context) (<-chan []*chat.Message, error) {
			return route.handler.SubscribeMessages(ctx, userID, otherUserID)
		},
		func(list []*chat.Message) any {
			return responses.NewMessageListResponse(list).Data
		},
		afterWrite,
	)
}

// deleteMessage godoc
// @Summary      Delete a message
// @Description  Only the sender may delete a message.
// @Tags         Conversations
// @Produce      json
// @Param        user_id path string true "Other participant"
// @Param        message_id path string true "Message ID"
// @Success      200 {object} responses.StatusResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{user_id}/messages/{message_id} [delete]
func (route *ChatRoute) deleteMessage(c *gin.Context) {
	err := route.handler.DeleteMessage(c.Request.Context(), auth.CurrentUserID(c), c.Param("user_id"), c.Param("message_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to delete message")
		return
	}
	c.JSON(http.StatusOK, responses.OK)
}
