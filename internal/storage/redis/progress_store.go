// Package redis implements the watcher resume point on Redis.
package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"solana-burn-hook/internal/storage"
)

// DefaultProgressKey is the hash holding the watcher position.
const DefaultProgressKey = "burn-hook:watcher:progress"

// NewClient connects to a redis:// URL and verifies it with a ping.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// ProgressStore is a Redis implementation of storage.ProgressStore.
// The position is one hash with slot and signature fields.
type ProgressStore struct {
	rdb *redis.Client
	key string
}

// NewProgressStore creates a progress store under key; empty key uses DefaultProgressKey.
func NewProgressStore(rdb *redis.Client, key string) *ProgressStore {
	if key == "" {
		key = DefaultProgressKey
	}
	return &ProgressStore{rdb: rdb, key: key}
}

var _ storage.ProgressStore = (*ProgressStore)(nil)

// GetLastProcessed returns the last processed slot and signature.
func (s *ProgressStore) GetLastProcessed(ctx context.Context) (*storage.Progress, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", s.key, err)
	}
	raw, ok := fields["slot"]
	if !ok {
		return nil, storage.ErrNotFound
	}

	slot, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse stored slot %q: %w", raw, err)
	}
	return &storage.Progress{Slot: slot, Signature: fields["signature"]}, nil
}

// SetLastProcessed saves the last processed slot and signature in one HSET.
func (s *ProgressStore) SetLastProcessed(ctx context.Context, progress *storage.Progress) error {
	if err := storage.ValidateProgress(progress); err != nil {
		return err
	}
	err := s.rdb.HSet(ctx, s.key, map[string]interface{}{
		"slot":      progress.Slot,
		"signature": progress.Signature,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", s.key, err)
	}
	return nil
}
