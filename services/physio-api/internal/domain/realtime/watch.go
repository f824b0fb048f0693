package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Loader produces the current snapshot for a topic.
type Loader[T any] func(ctx context.Context) (T, error)

// Watch subscribes to topic and delivers the full snapshot produced by load:
// once immediately and again after every change. The channel holds at most
// one pending snapshot; a slow reader only ever sees the newest one. The
// channel is closed when ctx ends or the subscription drops.
func Watch[T any](ctx context.Context, broker Broker, topic string, load Loader[T], log zerolog.Logger) (<-chan T, error) {
	events, err := broker.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	initial, err := load(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan T, 1)
	out <- initial

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				snapshot, err := load(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warn().Err(err).Str("topic", topic).Msg("failed to reload snapshot")
					continue
				}
				deliverLatest(out, snapshot)
			}
		}
	}()

	return out, nil
}

func deliverLatest[T any](out chan T, value T) {
	select {
	case out <- value:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- value:
	default:
	}
}

// NewEvent stamps an event for topic.
func NewEvent(topic, eventType string) Event {
	return Event{Topic: topic, Type: eventType, At: time.Now().UnixMilli()}
}
