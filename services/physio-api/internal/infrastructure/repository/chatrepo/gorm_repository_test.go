package chatrepo_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"physio-server/services/physio-api/internal/config"
	"physio-server/services/physio-api/internal/domain/chat"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/database"
	"physio-server/services/physio-api/internal/infrastructure/database/transaction"
	"physio-server/services/physio-api/internal/infrastructure/repository/chatrepo"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

func newGormRepository(t *testing.T) *chatrepo.ChatGormRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Connect(database.Config{
		Driver:     config.DatabaseDriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "chat.db"),
		LogLevel:   gormlogger.Silent,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.AutoMigrate(ctx, db, config.DatabaseDriverSQLite, zerolog.Nop()))
	return chatrepo.NewChatGormRepository(transaction.NewDatabase(db))
}

func message(id, from, to, content string, ts int64) *chat.Message {
	return &chat.Message{
		ID:             id,
		ConversationID: chat.ConversationID(from, to),
		SenderID:       from,
		ReceiverID:     to,
		Content:        content,
		SenderRole:     user.RolePatient,
		Timestamp:      ts,
	}
}

func summaryOf(t *testing.T, repo chat.Repository, owner string) *chat.Summary {
	t.Helper()
	summaries, err := repo.ListSummaries(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	return summaries[0]
}

func TestChatGormRepository_SaveMessageUpdatesBothSummaries(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveMessage(ctx, message("m1", "a", "b", "hello", 100)))
	require.NoError(t, repo.SaveMessage(ctx, message("m2", "a", "b", "again", 200)))

	sender := summaryOf(t, repo, "a")
	assert.Equal(t, "b", sender.OtherUserID)
	assert.Equal(t, 0, sender.UnreadCount)
	assert.Equal(t, "again", sender.LastMessage)

	receiver := summaryOf(t, repo, "b")
	assert.Equal(t, "a", receiver.OtherUserID)
	assert.Equal(t, 2, receiver.UnreadCount)
	assert.Equal(t, int64(200), receiver.LastMessageTime)
	assert.Equal(t, "a", receiver.LastSenderID)

	require.NoError(t, repo.SaveMessage(ctx, message("m3", "b", "a", "reply", 300)))
	assert.Equal(t, 1, summaryOf(t, repo, "a").UnreadCount)
	assert.Equal(t, 0, summaryOf(t, repo, "b").UnreadCount, "replying resets the sender's counter")

	total, err := repo.SumUnread(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestChatGormRepository_ConcurrentSendsKeepEveryIncrement(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()

	const senders = 20
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.SaveMessage(ctx, message(fmt.Sprintf("m%02d", i), "a", "b", fmt.Sprintf("msg %d", i), int64(i)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	receiver := summaryOf(t, repo, "b")
	assert.Equal(t, senders, receiver.UnreadCount)
	assert.Equal(t, int64(senders-1), receiver.LastMessageTime, "the newest message wins the preview")
	assert.Equal(t, fmt.Sprintf("msg %d", senders-1), receiver.LastMessage)
	assert.Equal(t, 0, summaryOf(t, repo, "a").UnreadCount)
}

func TestChatGormRepository_OlderMessageDoesNotRollPreviewBack(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveMessage(ctx, message("m2", "a", "b", "newer", 200)))
	require.NoError(t, repo.SaveMessage(ctx, message("m1", "a", "b", "older", 100)))

	receiver := summaryOf(t, repo, "b")
	assert.Equal(t, "newer", receiver.LastMessage)
	assert.Equal(t, int64(200), receiver.LastMessageTime)
	assert.Equal(t, 2, receiver.UnreadCount)
}

func TestChatGormRepository_ListMessagesOldestFirst(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveMessage(ctx, message("m1", "a", "b", "one", 100)))
	require.NoError(t, repo.SaveMessage(ctx, message("m2", "b", "a", "two", 200)))
	require.NoError(t, repo.SaveMessage(ctx, message("m3", "a", "b", "three", 300)))

	messages, err := repo.ListMessages(ctx, chat.ConversationID("a", "b"), 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "two", messages[0].Content)
	assert.Equal(t, "three", messages[1].Content)
}

func TestChatGormRepository_MarkRead(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()

	result, err := repo.MarkRead(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, chat.MarkReadResult{}, result, "no summary yet is a no-op")

	require.NoError(t, repo.SaveMessage(ctx, message("m1", "a", "b", "one", 100)))
	require.NoError(t, repo.SaveMessage(ctx, message("m2", "a", "b", "two", 200)))
	require.NoError(t, repo.SaveMessage(ctx, message("m3", "b", "a", "mine", 300)))

	result, err = repo.MarkRead(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, result.SummaryFound)
	assert.Equal(t, int64(2), result.MessagesUpdated)
	assert.Equal(t, 0, summaryOf(t, repo, "b").UnreadCount)

	messages, err := repo.ListMessages(ctx, chat.ConversationID("a", "b"), 10)
	require.NoError(t, err)
	for _, m := range messages {
		assert.Equal(t, m.ReceiverID == "b", m.Read, m.ID)
	}

	result, err = repo.MarkRead(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.MessagesUpdated)
}

func TestChatGormRepository_DeleteMessageAndSummary(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()
	conversationID := chat.ConversationID("a", "b")

	require.NoError(t, repo.SaveMessage(ctx, message("m1", "a", "b", "one", 100)))

	found, err := repo.FindMessage(ctx, conversationID, "m1")
	require.NoError(t, err)
	assert.Equal(t, "one", found.Content)

	require.NoError(t, repo.DeleteMessage(ctx, conversationID, "m1"))
	err = repo.DeleteMessage(ctx, conversationID, "m1")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	_, err = repo.FindMessage(ctx, conversationID, "m1")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	require.NoError(t, repo.DeleteSummary(ctx, "b", "a"))
	summaries, err := repo.ListSummaries(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Len(t, mustSummaries(t, repo, "a"), 1, "the other participant keeps their view")
}

func mustSummaries(t *testing.T, repo chat.Repository, owner string) []*chat.Summary {
	t.Helper()
	summaries, err := repo.ListSummaries(context.Background(), owner)
	require.NoError(t, err)
	return summaries
}
