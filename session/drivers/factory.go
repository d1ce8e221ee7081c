package drivers

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/session"
)

// StoreType represents the type of session store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// StoreOption is a functional option for configuring a session store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the TTL for Redis keys.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// NewStore creates a session.Store of the given type.
// The Redis store requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (session.Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory, "":
		return NewInMemoryStore(), nil

	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, krishi.ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.redisTTL), nil

	default:
		return nil, krishi.ErrInvalidStoreType
	}
}
