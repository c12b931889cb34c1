// Package redis implements store.Snapshots on Redis. Snapshots live under
// one key per room; updated_at is tracked in a companion key so operators
// can inspect staleness with plain GET.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nevindra/mural/store"
)

const keyPrefix = "mural:snapshot:"

// Store implements store.Snapshots backed by a Redis instance. The client
// is externally owned; the caller closes it.
type Store struct {
	client *redis.Client
}

var _ store.Snapshots = (*Store)(nil)

// New creates a Store using an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Name() string { return "redis" }

// Init verifies connectivity.
func (s *Store) Init(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, roomID string) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+roomID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: load snapshot: %w", err)
	}
	return data, nil
}

func (s *Store) Save(ctx context.Context, roomID string, snapshot []byte) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, keyPrefix+roomID, snapshot, 0)
	pipe.Set(ctx, keyPrefix+roomID+":updated_at", time.Now().UTC().Format(time.RFC3339), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save snapshot: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *Store) Close() error { return nil }
