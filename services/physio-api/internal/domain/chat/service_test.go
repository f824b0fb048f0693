package chat_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physio-server/pkg/telemetry"
	"physio-server/services/physio-api/internal/domain/chat"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/pubsub"
	"physio-server/services/physio-api/internal/infrastructure/repository/chatrepo"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

type stubDirectory map[string]*user.User

func (d stubDirectory) GetProfile(ctx context.Context, id string) (*user.User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "User data not found", nil, "")
}

type fixture struct {
	svc    *chat.Service
	broker *pubsub.MemoryBroker
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := stubDirectory{
		"d1": {ID: "d1", FullName: "Dr One", Role: user.RoleDoctor, IsActive: true},
		"d2": {ID: "d2", FullName: "Dr Two", Role: user.RoleDoctor, IsActive: true},
		"p1": {ID: "p1", FullName: "Pat One", Role: user.RolePatient, IsActive: true},
		"p2": {ID: "p2", FullName: "Pat Two", Role: user.RolePatient, IsActive: true},
	}
	broker := pubsub.NewMemoryBroker()
	t.Cleanup(func() { _ = broker.Close() })
	svc := chat.NewService(chatrepo.NewInMemoryRepository(), dir, broker,
		telemetry.NewSanitizer(telemetry.PIILevelHashed, "test"), chat.Config{MaxMessageLength: 20}, zerolog.Nop())
	return fixture{svc: svc, broker: broker}
}

func TestConversationIDIsOrderIndependent(t *testing.T) {
	assert.Equal(t, "a_b", chat.ConversationID("b", "a"))
	assert.Equal(t, chat.ConversationID("p1", "d1"), chat.ConversationID("d1", "p1"))
}

func TestSendMessageValidation(t *testing.T) {
	tests := []struct {
		name     string
		sender   string
		receiver string
		content  string
		errType  platformerrors.ErrorType
	}{
		{name: "empty content", sender: "p1", receiver: "d1", content: "   ", errType: platformerrors.ErrorTypeValidation},
		{name: "too long", sender: "p1", receiver: "d1", content: strings.Repeat("x", 21), errType: platformerrors.ErrorTypeValidation},
		{name: "self", sender: "p1", receiver: "p1", content: "hi", errType: platformerrors.ErrorTypeValidation},
		{name: "same role", sender: "p1", receiver: "p2", content: "hi", errType: platformerrors.ErrorTypeValidation},
		{name: "unknown receiver", sender: "p1", receiver: "ghost", content: "hi", errType: platformerrors.ErrorTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.SendMessage(context.Background(), tt.sender, tt.receiver, tt.content)
			require.Error(t, err)
			assert.True(t, platformerrors.IsErrorType(err, tt.errType), err.Error())
		})
	}
}

func TestSendMessageUpdatesBothSummaries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, content := range []string{"hello", "are you there"} {
		_, err := f.svc.SendMessage(ctx, "p1", "d1", content)
		require.NoError(t, err)
	}
	reply, err := f.svc.SendMessage(ctx, "d1", "p1", " yes ")
	require.NoError(t, err)
	assert.Equal(t, "yes", reply.Content)
	assert.Equal(t, user.RoleDoctor, reply.SenderRole)
	assert.Equal(t, chat.ConversationID("p1", "d1"), reply.ConversationID)

	assert.Equal(t, 2, f.svc.GetTotalUnreadCount(ctx, "d1"))
	assert.Equal(t, 1, f.svc.GetTotalUnreadCount(ctx, "p1"))

	convs, err := f.svc.GetConversations(ctx, "d1", user.RoleDoctor)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "p1", convs[0].OtherUserID)
	assert.Equal(t, "yes", convs[0].LastMessage)
	assert.Equal(t, "d1", convs[0].LastSenderID)
	assert.Equal(t, 0, convs[0].UnreadCount)
	assert.Equal(t, "Pat One", convs[0].OtherUser.FullName)

	messages, err := f.svc.GetMessages(ctx, "d1", "p1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "yes", messages[2].Content)

	last, err := f.svc.GetMessages(ctx, "p1", "d1", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "yes", last[0].Content)
}

func TestConcurrentSendsKeepEveryUnreadIncrement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SendMessage(ctx, "p1", "d1", "ping")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, n, f.svc.GetTotalUnreadCount(ctx, "d1"))
}

func TestMarkMessagesAsRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.SendMessage(ctx, "p1", "d1", "hello")
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkMessagesAsRead(ctx, "d1", "p1"))
	assert.Equal(t, 0, f.svc.GetTotalUnreadCount(ctx, "d1"))

	messages, err := f.svc.GetMessages(ctx, "d1", "p1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Read)

	// No summary for a pair that never talked; marking is harmless.
	require.NoError(t, f.svc.MarkMessagesAsRead(ctx, "d2", "p2"))
}

func TestGetConversationsFiltersSameRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.SendMessage(ctx, "p1", "d1", "to d1")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = f.svc.SendMessage(ctx, "p1", "d2", "to d2")
	require.NoError(t, err)

	convs, err := f.svc.GetConversations(ctx, "p1", user.RolePatient)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "d2", convs[0].OtherUserID)

	// Asking as the wrong role hides partners of the same role.
	convs, err = f.svc.GetConversations(ctx, "p1", user.RoleDoctor)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestDeleteConversationOnlyAffectsCaller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.SendMessage(ctx, "p1", "d1", "hello")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteConversation(ctx, "p1", "d1"))

	mine, err := f.svc.GetConversations(ctx, "p1", user.RolePatient)
	require.NoError(t, err)
	assert.Empty(t, mine)

	theirs, err := f.svc.GetConversations(ctx, "d1", user.RoleDoctor)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	messages, err := f.svc.GetMessages(ctx, "p1", "d1", 0)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg, err := f.svc.SendMessage(ctx, "p1", "d1", "oops")
	require.NoError(t, err)

	err = f.svc.DeleteMessage(ctx, "d1", "p1", msg.ID)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	require.NoError(t, f.svc.DeleteMessage(ctx, "p1", "d1", msg.ID))
	err = f.svc.DeleteMessage(ctx, "p1", "d1", msg.ID)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestSubscribeToMessagesDeliversSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)

	ch, err := f.svc.SubscribeToMessages(ctx, "d1", "p1")
	require.NoError(t, err)

	select {
	case initial := <-ch:
		assert.Empty(t, initial)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	_, err = f.svc.SendMessage(ctx, "p1", "d1", "hello")
	require.NoError(t, err)

	select {
	case snapshot := <-ch:
		require.Len(t, snapshot, 1)
		assert.Equal(t, "hello", snapshot[0].Content)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after send")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeToConversations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)

	ch, err := f.svc.SubscribeToConversations(ctx, "d1", user.RoleDoctor)
	require.NoError(t, err)
	<-ch

	_, err = f.svc.SendMessage(ctx, "p1", "d1", "hello")
	require.NoError(t, err)

	select {
	case snapshot := <-ch:
		require.Len(t, snapshot, 1)
		assert.Equal(t, 1, snapshot[0].UnreadCount)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after send")
	}
}
