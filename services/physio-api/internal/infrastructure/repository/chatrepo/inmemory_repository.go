package chatrepo

import (
	"context"
	"sort"
	"sync"

	"physio-server/services/physio-api/internal/domain/chat"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

type summaryKeyPair struct {
	owner string
	other string
}

// InMemoryRepository is a thread-safe chat store for tests and DB_DRIVER=memory.
type InMemoryRepository struct {
	mu        sync.RWMutex
	messages  map[string][]chat.Message
	summaries map[summaryKeyPair]chat.Summary
}

var _ chat.Repository = (*InMemoryRepository)(nil)

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		messages:  make(map[string][]chat.Message),
		summaries: make(map[summaryKeyPair]chat.Summary),
	}
}

func (r *InMemoryRepository) SaveMessage(ctx context.Context, msg *chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], *msg)

	senderKey := summaryKeyPair{msg.SenderID, msg.ReceiverID}
	sender := withPreview(r.summaries[senderKey], msg)
	sender.OwnerID, sender.OtherUserID = msg.SenderID, msg.ReceiverID
	sender.UnreadCount = 0
	r.summaries[senderKey] = sender

	receiverKey := summaryKeyPair{msg.ReceiverID, msg.SenderID}
	receiver := withPreview(r.summaries[receiverKey], msg)
	receiver.OwnerID, receiver.OtherUserID = msg.ReceiverID, msg.SenderID
	receiver.UnreadCount++
	r.summaries[receiverKey] = receiver
	return nil
}

// withPreview moves the summary preview to msg unless it already shows a
// newer message.
func withPreview(summary chat.Summary, msg *chat.Message) chat.Summary {
	if msg.Timestamp >= summary.LastMessageTime {
		summary.LastMessage = msg.Content
		summary.LastMessageTime = msg.Timestamp
		summary.LastSenderID = msg.SenderID
	}
	return summary
}

func (r *InMemoryRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]*chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := append([]chat.Message(nil), r.messages[conversationID]...)
	sort.SliceStable(stored, func(i, j int) bool {
		if stored[i].Timestamp != stored[j].Timestamp {
			return stored[i].Timestamp < stored[j].Timestamp
		}
		return stored[i].ID < stored[j].ID
	})
	if limit > 0 && len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}
	out := make([]*chat.Message, 0, len(stored))
	for i := range stored {
		out = append(out, &stored[i])
	}
	return out, nil
}

func (r *InMemoryRepository) FindMessage(ctx context.Context, conversationID, messageID string) (*chat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, msg := range r.messages[conversationID] {
		if msg.ID == messageID {
			found := msg
			return &found, nil
		}
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "message not found", nil, "")
}

func (r *InMemoryRepository) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.messages[conversationID]
	for i, msg := range stored {
		if msg.ID == messageID {
			r.messages[conversationID] = append(stored[:i:i], stored[i+1:]...)
			return nil
		}
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "message not found", nil, "")
}

func (r *InMemoryRepository) ListSummaries(ctx context.Context, ownerID string) ([]*chat.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*chat.Summary, 0)
	for key, summary := range r.summaries {
		if key.owner == ownerID {
			found := summary
			out = append(out, &found)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageTime > out[j].LastMessageTime
	})
	return out, nil
}

func (r *InMemoryRepository) MarkRead(ctx context.Context, ownerID, otherUserID string) (chat.MarkReadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result chat.MarkReadResult
	key := summaryKeyPair{ownerID, otherUserID}
	if summary, ok := r.summaries[key]; ok {
		summary.UnreadCount = 0
		r.summaries[key] = summary
		result.SummaryFound = true
	}

	conversationID := chat.ConversationID(ownerID, otherUserID)
	stored := r.messages[conversationID]
	for i := range stored {
		if stored[i].ReceiverID == ownerID && !stored[i].Read {
			stored[i].Read = true
			result.MessagesUpdated++
		}
	}
	return result, nil
}

func (r *InMemoryRepository) DeleteSummary(ctx context.Context, ownerID, otherUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.summaries, summaryKeyPair{ownerID, otherUserID})
	return nil
}

func (r *InMemoryRepository) SumUnread(ctx context.Context, ownerID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for key, summary := range r.summaries {
		if key.owner == ownerID {
			total += summary.UnreadCount
		}
	}
	return total, nil
}
