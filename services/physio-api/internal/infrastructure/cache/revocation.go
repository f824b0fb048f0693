package cache

import (
	"context"
	"time"

	"physio-server/services/physio-api/internal/domain/identity"
)

// MemoryRevocationList remembers revoked token ids in the process LRU.
type MemoryRevocationList struct {
	cache *MemoryCache
}

var _ identity.RevocationList = (*MemoryRevocationList)(nil)

func NewMemoryRevocationList(cache *MemoryCache) *MemoryRevocationList {
	return &MemoryRevocationList{cache: cache}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	l.cache.Set("revoked:"+tokenID, true, ttl)
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := l.cache.Get("revoked:" + tokenID)
	return ok, nil
}

// RedisRevocationList shares revocations across replicas.
type RedisRevocationList struct {
	redis *RedisCache
}

var _ identity.RevocationList = (*RedisRevocationList)(nil)

func NewRedisRevocationList(r *RedisCache) *RedisRevocationList {
	return &RedisRevocationList{redis: r}
}

func (l *RedisRevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return l.redis.client.Set(ctx, l.redis.key("revoked", tokenID), "1", ttl).Err()
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return l.redis.Exists(ctx, l.redis.key("revoked", tokenID))
}
