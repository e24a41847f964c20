// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package webauthn

import (
	"context"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// ChallengeStore holds pending ceremony session data keyed by user id.
// A user has at most one pending challenge; Put replaces any existing
// entry so a re-issued ceremony invalidates the previous one.
type ChallengeStore interface {
	// Put stores session data for the user, overwriting any pending entry.
	Put(ctx context.Context, userID string, data *webauthn.SessionData) error

	// Get retrieves pending session data. Returns ErrChallengeNotFound
	// when no entry exists or the entry has expired.
	Get(ctx context.Context, userID string) (*webauthn.SessionData, error)

	// Delete removes the pending entry. Deleting a missing entry is not
	// an error.
	Delete(ctx context.Context, userID string) error
}

// MemoryChallengeStore is an in-memory implementation of ChallengeStore.
// This is intended for development and testing only.
type MemoryChallengeStore struct {
	mu      sync.RWMutex
	entries map[string]*challengeEntry
	ttl     time.Duration
}

type challengeEntry struct {
	data      *webauthn.SessionData
	createdAt time.Time
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore(ttl time.Duration) *MemoryChallengeStore {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &MemoryChallengeStore{
		entries: make(map[string]*challengeEntry),
		ttl:     ttl,
	}
}

// Put stores session data for the user, overwriting any pending entry.
func (s *MemoryChallengeStore) Put(ctx context.Context, userID string, data *webauthn.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[userID] = &challengeEntry{
		data:      data,
		createdAt: time.Now(),
	}
	return nil
}

// Get retrieves pending session data for the user.
func (s *MemoryChallengeStore) Get(ctx context.Context, userID string) (*webauthn.SessionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[userID]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	if time.Since(entry.createdAt) > s.ttl {
		return nil, ErrChallengeNotFound
	}
	return entry.data, nil
}

// Delete removes the pending entry for the user.
func (s *MemoryChallengeStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, userID)
	return nil
}

// Count returns the number of pending challenges.
func (s *MemoryChallengeStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Cleanup removes expired entries and returns how many were removed.
func (s *MemoryChallengeStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, entry := range s.entries {
		if now.Sub(entry.createdAt) > s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
