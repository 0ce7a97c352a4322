package keyset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore keeps the last JWKS document per provider in Redis.
type RedisSnapshotStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisSnapshotStore creates a Redis-backed snapshot store. A zero ttl
// keeps snapshots until overwritten.
func NewRedisSnapshotStore(client redis.Cmdable, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{
		client: client,
		prefix: "jwks:",
		ttl:    ttl,
	}
}

func (s *RedisSnapshotStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisSnapshotStore) Load(ctx context.Context, name string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, fmt.Errorf("keyset: load snapshot: %w", err)
	}
	return raw, nil
}

func (s *RedisSnapshotStore) Save(ctx context.Context, name string, raw []byte) error {
	if name == "" || len(raw) == 0 {
		return fmt.Errorf("keyset: missing snapshot name or body")
	}
	return s.client.Set(ctx, s.key(name), raw, s.ttl).Err()
}
