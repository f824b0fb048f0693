package pubsub

import (
	"context"
	"errors"
	"sync"

	"physio-server/services/physio-api/internal/domain/realtime"
)

var ErrClosed = errors.New("broker closed")

// MemoryBroker fans events out inside one process.
type MemoryBroker struct {
	mu     sync.RWMutex
	topics map[string]map[chan realtime.Event]struct{}
	closed bool
}

var _ realtime.Broker = (*MemoryBroker)(nil)

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]map[chan realtime.Event]struct{})}
}

// Publish never blocks. A subscriber with an event already pending will
// reload anyway, so further events for it are dropped.
func (b *MemoryBroker) Publish(_ context.Context, event realtime.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for ch := range b.topics[event.Topic] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (<-chan realtime.Event, error) {
	ch := make(chan realtime.Event, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[chan realtime.Event]struct{})
		b.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(topic, ch)
	}()
	return ch, nil
}

func (b *MemoryBroker) remove(topic string, ch chan realtime.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
	close(ch)
}

// Subscribers reports how many subscriptions a topic has.
func (b *MemoryBroker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.topics {
		for ch := range subs {
			close(ch)
		}
		delete(b.topics, topic)
	}
	return nil
}
