package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/domain/realtime"
)

const redisChannelPrefix = "physio:events:"

// RedisBroker carries events between replicas over Redis pub/sub.
type RedisBroker struct {
	client redis.UniversalClient
	log    zerolog.Logger
}

var _ realtime.Broker = (*RedisBroker)(nil)

func NewRedisBroker(client redis.UniversalClient, log zerolog.Logger) *RedisBroker {
	return &RedisBroker{client: client, log: log.With().Str("component", "redis-broker").Logger()}
}

func (b *RedisBroker) Publish(ctx context.Context, event realtime.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.client.Publish(ctx, redisChannelPrefix+event.Topic, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan realtime.Event, error) {
	sub := b.client.Subscribe(ctx, redisChannelPrefix+topic)
	// Receive blocks until the subscription is confirmed, so no publish
	// after Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan realtime.Event, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event realtime.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
					continue
				}
				select {
				case out <- event:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Close leaves the shared client to its owner.
func (b *RedisBroker) Close() error {
	return nil
}
