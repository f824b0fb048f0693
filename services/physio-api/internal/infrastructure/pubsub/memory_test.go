package pubsub_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physio-server/services/physio-api/internal/domain/realtime"
	"physio-server/services/physio-api/internal/infrastructure/pubsub"
)

func TestMemoryBrokerFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker := pubsub.NewMemoryBroker()
	defer broker.Close()

	topic := realtime.MessagesTopic("a_b")
	first, err := broker.Subscribe(ctx, topic)
	require.NoError(t, err)
	second, err := broker.Subscribe(ctx, topic)
	require.NoError(t, err)
	other, err := broker.Subscribe(ctx, realtime.MessagesTopic("a_c"))
	require.NoError(t, err)
	assert.Equal(t, 2, broker.Subscribers(topic))

	require.NoError(t, broker.Publish(ctx, realtime.NewEvent(topic, realtime.EventMessagesChanged)))

	for _, ch := range []<-chan realtime.Event{first, second} {
		select {
		case ev := <-ch:
			assert.Equal(t, topic, ev.Topic)
			assert.Equal(t, realtime.EventMessagesChanged, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
	select {
	case <-other:
		t.Fatal("event leaked to another topic")
	default:
	}
}

func TestMemoryBrokerPublishNeverBlocks(t *testing.T) {
	ctx := context.Background()
	broker := pubsub.NewMemoryBroker()
	defer broker.Close()

	ch, err := broker.Subscribe(ctx, "t")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, broker.Publish(ctx, realtime.NewEvent("t", "x")))
	}
	assert.Len(t, ch, 1)
}

func TestMemoryBrokerUnsubscribeAndClose(t *testing.T) {
	broker := pubsub.NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := broker.Subscribe(ctx, "t")
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool { return broker.Subscribers("t") == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-ch
	assert.False(t, open)

	require.NoError(t, broker.Close())
	err = broker.Publish(context.Background(), realtime.NewEvent("t", "x"))
	assert.ErrorIs(t, err, pubsub.ErrClosed)
	_, err = broker.Subscribe(context.Background(), "t")
	assert.ErrorIs(t, err, pubsub.ErrClosed)
}
