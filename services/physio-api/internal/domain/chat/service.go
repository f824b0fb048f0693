package chat

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"physio-server/pkg/telemetry"
	"physio-server/services/physio-api/internal/domain/realtime"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/metrics"
	"physio-server/services/physio-api/internal/utils/idgen"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
	defaultMaxLength    = 4000
)

// Directory resolves user profiles for the chat service.
type Directory interface {
	GetProfile(ctx context.Context, id string) (*user.User, error)
}

// Config tunes the chat service.
type Config struct {
	HistoryLimit     int
	MaxMessageLength int
}

// Service implements the messaging contract between patients and doctors.
type Service struct {
	repo      Repository
	users     Directory
	broker    realtime.Broker
	sanitizer *telemetry.Sanitizer
	cfg       Config
	now       func() time.Time
	log       zerolog.Logger
}

// NewService builds the chat service.
func NewService(repo Repository, users Directory, broker realtime.Broker, sanitizer *telemetry.Sanitizer, cfg Config, log zerolog.Logger) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = defaultMaxLength
	}
	return &Service{
		repo:      repo,
		users:     users,
		broker:    broker,
		sanitizer: sanitizer,
		cfg:       cfg,
		now:       time.Now,
		log:       log.With().Str("component", "chat-service").Logger(),
	}
}

// SendMessage appends a message to the pair's list. The sender's unread
// counter for the pair is reset to zero and the receiver's grows by one,
// whether or not the receiver currently has the thread open.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "message content is required", nil, "")
	}
	if utf8.RuneCountInString(content) > s.cfg.MaxMessageLength {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "message content is too long", nil, "")
	}
	if senderID == receiverID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "cannot send a message to yourself", nil, "")
	}

	sender, err := s.users.GetProfile(ctx, senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.users.GetProfile(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver.Role != sender.Role.Opposite() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "messages can only be sent between a patient and a doctor", nil, "")
	}

	now := s.now()
	msg := &Message{
		ID:             idgen.NewTimeOrderedID("msg", now),
		ConversationID: ConversationID(senderID, receiverID),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		SenderRole:     sender.Role,
		Timestamp:      now.UnixMilli(),
	}

	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to send message")
	}

	metrics.RecordMessageSent(string(sender.Role))
	s.publish(ctx,
		realtime.NewEvent(realtime.MessagesTopic(msg.ConversationID), realtime.EventMessagesChanged),
		realtime.NewEvent(realtime.ConversationsTopic(senderID), realtime.EventConversationsChanged),
		realtime.NewEvent(realtime.ConversationsTopic(receiverID), realtime.EventConversationsChanged),
	)

	s.log.Debug().
		Str("conversation_id", msg.ConversationID).
		Str("message_id", msg.ID).
		Str("content", s.sanitizer.SanitizeText(content)).
		Msg("message sent")
	return msg, nil
}

// GetMessages returns the last limit messages of the pair, oldest first.
func (s *Service) GetMessages(ctx context.Context, userID, otherUserID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	messages, err := s.repo.ListMessages(ctx, ConversationID(userID, otherUserID), limit)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load messages")
	}
	sortMessages(messages)
	return messages, nil
}

// GetConversations returns the owner's conversations with the other user's
// profile attached, keeping only partners of the opposite role, most recent first.
func (s *Service) GetConversations(ctx context.Context, userID string, role user.Role) ([]*Conversation, error) {
	summaries, err := s.repo.ListSummaries(ctx, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load conversations")
	}

	conversations := make([]*Conversation, 0, len(summaries))
	for _, summary := range summaries {
		other, err := s.users.GetProfile(ctx, summary.OtherUserID)
		if err != nil {
			s.log.Warn().Err(err).
				Str("user_id", userID).
				Str("other_user_id", summary.OtherUserID).
				Msg("skipping conversation with unreadable profile")
			continue
		}
		if other.Role != role.Opposite() {
			continue
		}
		conversations = append(conversations, &Conversation{Summary: *summary, OtherUser: other})
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastMessageTime > conversations[j].LastMessageTime
	})
	return conversations, nil
}

// SubscribeToMessages streams the full message list of the pair, once now and
// again after every change, until ctx ends.
func (s *Service) SubscribeToMessages(ctx context.Context, userID, otherUserID string) (<-chan []*Message, error) {
	topic := realtime.MessagesTopic(ConversationID(userID, otherUserID))
	ch, err := realtime.Watch(ctx, s.broker, topic, func(ctx context.Context) ([]*Message, error) {
		return s.GetMessages(ctx, userID, otherUserID, s.cfg.HistoryLimit)
	}, s.log)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to subscribe to messages")
	}
	return ch, nil
}

// SubscribeToConversations streams the owner's full conversation list.
func (s *Service) SubscribeToConversations(ctx context.Context, userID string, role user.Role) (<-chan []*Conversation, error) {
	topic := realtime.ConversationsTopic(userID)
	ch, err := realtime.Watch(ctx, s.broker, topic, func(ctx context.Context) ([]*Conversation, error) {
		return s.GetConversations(ctx, userID, role)
	}, s.log)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to subscribe to conversations")
	}
	return ch, nil
}

// MarkMessagesAsRead zeroes the reader's unread counter for the pair. A
// missing summary is left alone.
func (s *Service) MarkMessagesAsRead(ctx context.Context, userID, otherUserID string) error {
	result, err := s.repo.MarkRead(ctx, userID, otherUserID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to mark messages as read")
	}

	events := make([]realtime.Event, 0, 2)
	if result.SummaryFound {
		events = append(events, realtime.NewEvent(realtime.ConversationsTopic(userID), realtime.EventConversationsChanged))
	}
	// Only publish message changes when flags flipped, so readers that mark on
	// every delivery settle after one round.
	if result.MessagesUpdated > 0 {
		events = append(events, realtime.NewEvent(realtime.MessagesTopic(ConversationID(userID, otherUserID)), realtime.EventMessagesChanged))
	}
	s.publish(ctx, events...)
	return nil
}

// GetTotalUnreadCount sums the owner's unread counters. Storage failures are
// logged and reported as zero.
func (s *Service) GetTotalUnreadCount(ctx context.Context, userID string) int {
	total, err := s.repo.SumUnread(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("failed to count unread messages")
		return 0
	}
	return total
}

// DeleteConversation removes only the caller's summary; the other
// participant and the message list are untouched.
func (s *Service) DeleteConversation(ctx context.Context, userID, otherUserID string) error {
	if err := s.repo.DeleteSummary(ctx, userID, otherUserID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversation")
	}
	s.publish(ctx, realtime.NewEvent(realtime.ConversationsTopic(userID), realtime.EventConversationsChanged))
	return nil
}

// DeleteMessage removes a message from the pair's list. Only its sender may delete it.
func (s *Service) DeleteMessage(ctx context.Context, currentUserID, otherUserID, messageID string) error {
	conversationID := ConversationID(currentUserID, otherUserID)
	msg, err := s.repo.FindMessage(ctx, conversationID, messageID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load message")
	}
	if msg.SenderID != currentUserID {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "You can only delete your own messages", nil, "")
	}
	if err := s.repo.DeleteMessage(ctx, conversationID, messageID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete message")
	}
	s.publish(ctx, realtime.NewEvent(realtime.MessagesTopic(conversationID), realtime.EventMessagesChanged))
	return nil
}

func (s *Service) publish(ctx context.Context, events ...realtime.Event) {
	for _, event := range events {
		if err := s.broker.Publish(ctx, event); err != nil {
			s.log.Warn().Err(err).Str("topic", event.Topic).Msg("failed to publish change")
		}
	}
}

func sortMessages(messages []*Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Timestamp != messages[j].Timestamp {
			return messages[i].Timestamp < messages[j].Timestamp
		}
		return messages[i].ID < messages[j].ID
	})
}
