package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/domain/realtime"
)

const postgresChannel = "physio_events"

// PostgresBroker carries events over LISTEN/NOTIFY. One connection listens on
// a single channel and fans events out locally.
type PostgresBroker struct {
	pool           *pgxpool.Pool
	local          *MemoryBroker
	reconnectDelay time.Duration
	log            zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

var _ realtime.Broker = (*PostgresBroker)(nil)

func NewPostgresBroker(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresBroker, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create notify pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping notify pool: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	b := &PostgresBroker{
		pool:           pool,
		local:          NewMemoryBroker(),
		reconnectDelay: 2 * time.Second,
		log:            log.With().Str("component", "postgres-broker").Logger(),
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	go b.listen(listenCtx)
	return b, nil
}

func (b *PostgresBroker) Publish(ctx context.Context, event realtime.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = b.pool.Exec(ctx, "SELECT pg_notify($1, $2)", postgresChannel, string(payload))
	return err
}

func (b *PostgresBroker) Subscribe(ctx context.Context, topic string) (<-chan realtime.Event, error) {
	return b.local.Subscribe(ctx, topic)
}

func (b *PostgresBroker) listen(ctx context.Context) {
	defer close(b.done)
	for {
		if err := b.listenOnce(ctx); err != nil && ctx.Err() == nil {
			b.log.Warn().Err(err).Dur("retry_in", b.reconnectDelay).Msg("notification listener dropped")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.reconnectDelay):
		}
	}
}

func (b *PostgresBroker) listenOnce(ctx context.Context) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+postgresChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	b.log.Info().Str("channel", postgresChannel).Msg("listening for notifications")

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var event realtime.Event
		if err := json.Unmarshal([]byte(notification.Payload), &event); err != nil {
			b.log.Warn().Err(err).Msg("dropping malformed notification")
			continue
		}
		if err := b.local.Publish(ctx, event); err != nil {
			return err
		}
	}
}

func (b *PostgresBroker) Close() error {
	b.once.Do(func() {
		b.cancel()
		<-b.done
		_ = b.local.Close()
		b.pool.Close()
	})
	return nil
}
