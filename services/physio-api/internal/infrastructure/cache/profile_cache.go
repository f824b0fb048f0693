package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/domain/user"
)

// cachedUser is the cached profile. The password hash never leaves the database.
type cachedUser struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	LicenseNumber  string    `json:"license_number,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Age            int       `json:"age,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	IsActive       bool      `json:"is_active"`
	AuthProvider   string    `json:"auth_provider"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toCached(u *user.User) cachedUser {
	return cachedUser{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		Role:           string(u.Role),
		LicenseNumber:  u.LicenseNumber,
		Specialization: u.Specialization,
		Age:            u.Age,
		Phone:          u.Phone,
		IsActive:       u.IsActive,
		AuthProvider:   string(u.AuthProvider),
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (c cachedUser) toDomain() *user.User {
	return &user.User{
		ID:             c.ID,
		Email:          c.Email,
		FullName:       c.FullName,
		Role:           user.Role(c.Role),
		LicenseNumber:  c.LicenseNumber,
		Specialization: c.Specialization,
		Age:            c.Age,
		Phone:          c.Phone,
		IsActive:       c.IsActive,
		AuthProvider:   user.AuthProvider(c.AuthProvider),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// MemoryProfileCache keeps profiles in the process LRU.
type MemoryProfileCache struct {
	cache *MemoryCache
	ttl   time.Duration
}

var _ user.Cache = (*MemoryProfileCache)(nil)

func NewMemoryProfileCache(cache *MemoryCache, ttl time.Duration) *MemoryProfileCache {
	return &MemoryProfileCache{cache: cache, ttl: ttl}
}

func (c *MemoryProfileCache) Get(_ context.Context, id string) (*user.User, bool) {
	val, ok := c.cache.Get("profile:" + id)
	if !ok {
		return nil, false
	}
	return val.(cachedUser).toDomain(), true
}

func (c *MemoryProfileCache) Set(_ context.Context, u *user.User) {
	c.cache.Set("profile:"+u.ID, toCached(u), c.ttl)
}

func (c *MemoryProfileCache) Invalidate(_ context.Context, id string) {
	c.cache.Remove("profile:" + id)
}

// RedisProfileCache shares profiles across replicas. Redis failures are
// logged and treated as misses.
type RedisProfileCache struct {
	redis *RedisCache
	ttl   time.Duration
	log   zerolog.Logger
}

var _ user.Cache = (*RedisProfileCache)(nil)

func NewRedisProfileCache(r *RedisCache, ttl time.Duration, log zerolog.Logger) *RedisProfileCache {
	return &RedisProfileCache{redis: r, ttl: ttl, log: log.With().Str("component", "profile-cache").Logger()}
}

func (c *RedisProfileCache) Get(ctx context.Context, id string) (*user.User, bool) {
	cached, err := GetJSON[cachedUser](ctx, c.redis, c.redis.key("profile", id))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("user_id", id).Msg("profile cache read failed")
		}
		return nil, false
	}
	return cached.toDomain(), true
}

func (c *RedisProfileCache) Set(ctx context.Context, u *user.User) {
	if err := c.redis.SetJSON(ctx, c.redis.key("profile", u.ID), toCached(u), c.ttl); err != nil {
		c.log.Warn().Err(err).Str("user_id", u.ID).Msg("profile cache write failed")
	}
}

func (c *RedisProfileCache) Invalidate(ctx context.Context, id string) {
	if err := c.redis.Delete(ctx, c.redis.key("profile", id)); err != nil {
		c.log.Warn().Err(err).Str("user_id", id).Msg("profile cache invalidate failed")
	}
}
