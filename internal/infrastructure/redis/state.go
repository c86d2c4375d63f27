// Package redis provides a Redis-backed store for the referral state document.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/drfirst/go-referral/internal/domain/referral"
)

// DefaultKey is the key the state document lives under
const DefaultKey = "freed-referral-state"

// StateStore keeps the state document as a single string value
type StateStore struct {
	client *goredis.Client
	key    string
	logger *zap.Logger
}

// NewStateStore creates a store over client. An empty key uses DefaultKey.
func NewStateStore(client *goredis.Client, key string, logger *zap.Logger) *StateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == "" {
		key = DefaultKey
	}
	return &StateStore{client: client, key: key, logger: logger}
}

// Connect parses a redis:// URL and verifies the server answers
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Load returns the stored document
func (s *StateStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, referral.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return data, nil
}

// Save overwrites the stored document
func (s *StateStore) Save(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Delete removes the stored document
func (s *StateStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}

// Ping checks connectivity
func (s *StateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
