package drivers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/session"
)

const (
	// Redis key prefix for chat sessions
	sessionKeyPrefix = "krishi:session:"
	// Default TTL for session keys (7 days; farmers come back to a conversation)
	defaultTTL = 7 * 24 * time.Hour
)

// RedisStore implements session.Store using Redis with optimistic locking.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-based session store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Create implements session.Store. The key is written with SETNX so an
// existing session is never overwritten.
func (s *RedisStore) Create(ctx context.Context, data *session.SessionData) error {
	now := time.Now()
	data.CreatedAt = now
	data.UpdatedAt = now
	data.Version = 1

	val, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(data.ID), val, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return krishi.ErrAlreadyExists
	}
	return nil
}

// Get implements session.Store. Refreshes TTL on every read.
func (s *RedisStore) Get(ctx context.Context, id string) (*session.SessionData, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var data session.SessionData
	if err := json.Unmarshal(val, &data); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	// A failed TTL refresh only shortens the session's life.
	_ = s.client.Expire(ctx, key, s.ttl).Err()

	return &data, nil
}

// Update implements session.Store using WATCH/MULTI/EXEC.
func (s *RedisStore) Update(ctx context.Context, data *session.SessionData) error {
	key := s.key(data.ID)

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return krishi.ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored session.SessionData
		if err := json.Unmarshal(val, &stored); err != nil {
			return fmt.Errorf("failed to decode session: %w", err)
		}
		if stored.Version != data.Version {
			return krishi.ErrVersionConflict
		}

		next := *data
		next.Version++
		next.UpdatedAt = time.Now()

		newVal, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		data.Version = next.Version
		data.UpdatedAt = next.UpdatedAt
		return nil
	}, key)
}

// Delete implements session.Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Close implements session.Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return sessionKeyPrefix + id
}

var _ session.Store = (*RedisStore)(nil)
