package lock

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/domain/device"
)

const lockRetryDelay = 50 * time.Millisecond

// Redis holds session locks in Redis so replicas exclude each other.
type Redis struct {
	rs  *redsync.Redsync
	log zerolog.Logger
}

var _ device.Locker = (*Redis)(nil)

func NewRedis(client redis.UniversalClient, log zerolog.Logger) *Redis {
	return &Redis{
		rs:  redsync.New(goredis.NewPool(client)),
		log: log.With().Str("component", "redis-lock").Logger(),
	}
}

func (r *Redis) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	tries := int(ttl/lockRetryDelay) + 1
	mutex := r.rs.NewMutex("lock:"+key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(lockRetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return err
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			r.log.Error().Err(err).Str("key", key).Msg("Failed to unlock mutex")
		}
	}()

	return fn(ctx)
}
