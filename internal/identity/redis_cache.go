package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
)

const defaultKeyPrefix = "lowballer:identity:"

// RedisCache keeps resolved identities in Redis with a fixed TTL.
type RedisCache struct {
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to addr and verifies the connection with PING.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: defaultKeyPrefix}, nil
}

// Get returns the cached identity for key, if any.
func (c *RedisCache) Get(ctx context.Context, key string) (domain.Identity, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, err
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, false, fmt.Errorf("decode cached identity: %w", err)
	}
	return id, true, nil
}

// Set stores id under key for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, id domain.Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err()
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
