// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package webauthn

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-webauthn/webauthn/webauthn"
)

const challengeKeyPrefix = "secureapprove:challenge:"

// RedisChallengeStore is a Redis-backed implementation of ChallengeStore.
// Entries expire server-side via the key TTL, so a crashed instance
// never leaves orphaned challenges behind.
type RedisChallengeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisChallengeStore creates a Redis-backed challenge store from a
// redis URL, e.g. "redis://localhost:6379/0".
func NewRedisChallengeStore(url string, ttl time.Duration) (*RedisChallengeStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisChallengeStoreWithClient(client, ttl), nil
}

// NewRedisChallengeStoreWithClient wraps an existing client. The caller
// retains ownership of the client's lifecycle.
func NewRedisChallengeStoreWithClient(client *redis.Client, ttl time.Duration) *RedisChallengeStore {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisChallengeStore{
		client: client,
		ttl:    ttl,
	}
}

// Put stores session data for the user, overwriting any pending entry.
func (s *RedisChallengeStore) Put(ctx context.Context, userID string, data *webauthn.SessionData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}
	return s.client.Set(ctx, challengeKeyPrefix+userID, payload, s.ttl).Err()
}

// Get retrieves pending session data for the user.
func (s *RedisChallengeStore) Get(ctx context.Context, userID string) (*webauthn.SessionData, error) {
	key := challengeKeyPrefix + userID

	payload, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrChallengeNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var data webauthn.SessionData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		// Corrupt entries are unusable, drop them.
		s.client.Del(ctx, key)
		return nil, ErrChallengeNotFound
	}
	return &data, nil
}

// Delete removes the pending entry for the user.
func (s *RedisChallengeStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, challengeKeyPrefix+userID).Err()
}

// Ping checks Redis connectivity.
func (s *RedisChallengeStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis connection.
func (s *RedisChallengeStore) Close() error {
	return s.client.Close()
}
