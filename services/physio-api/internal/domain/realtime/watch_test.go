package realtime_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physio-server/services/physio-api/internal/domain/realtime"
	"physio-server/services/physio-api/internal/infrastructure/pubsub"
)

func TestWatchDeliversNewestSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker := pubsub.NewMemoryBroker()
	defer broker.Close()

	var version atomic.Int64
	ch, err := realtime.Watch(ctx, broker, "t", func(context.Context) (int64, error) {
		return version.Load(), nil
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.EqualValues(t, 0, <-ch)

	for i := 0; i < 5; i++ {
		version.Add(1)
		require.NoError(t, broker.Publish(ctx, realtime.NewEvent("t", "changed")))
	}

	assert.Eventually(t, func() bool {
		select {
		case v := <-ch:
			return v == 5
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestWatchInitialLoadError(t *testing.T) {
	broker := pubsub.NewMemoryBroker()
	defer broker.Close()
	boom := errors.New("boom")

	_, err := realtime.Watch(context.Background(), broker, "t", func(context.Context) (int, error) {
		return 0, boom
	}, zerolog.Nop())
	assert.ErrorIs(t, err, boom)
}

func TestWatchClosesWhenContextEnds(t *testing.T) {
	broker := pubsub.NewMemoryBroker()
	defer broker.Close()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := realtime.Watch(ctx, broker, "t", func(context.Context) (string, error) {
		return "snapshot", nil
	}, zerolog.Nop())
	require.NoError(t, err)
	<-ch
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "conversations.u1", realtime.ConversationsTopic("u1"))
	assert.Equal(t, "messages.a_b", realtime.MessagesTopic("a_b"))
	assert.Equal(t, "device.p1.glove", realtime.DeviceTopic("p1", "glove"))
}
