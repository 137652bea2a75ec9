// Package rediskv is the production store.KVStore, grounded on
// AltairaLabs/PromptKit's statestore.RedisStore: a redis/go-redis/v9
// client, JSON values, an optional key prefix and TTL.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/graphrt/runtime/internal/store"
)

// Store is a Redis-backed KVStore.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix. Default "graphrt".
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithTTL sets a TTL applied to every Set. Default 0 (no expiration) —
// node config and graph config are long-lived, unlike conversation state.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New wraps an existing redis client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: "graphrt"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) fullKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("rediskv get: %w", err)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.fullKey(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("rediskv set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("rediskv delete: %w", err)
	}
	return nil
}
