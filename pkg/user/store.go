// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package user

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence interface for users and their credentials.
// Production deployments back this with the document database owned by
// the user CRUD module; the in-memory implementation below serves
// single-instance development and tests.
type Store interface {
	// GetByID retrieves a user by id. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email. Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create persists a new user. The user's ID is assigned if empty.
	// Returns ErrEmailTaken if the email is already in use.
	Create(ctx context.Context, u *User) error

	// Save persists changes to an existing user.
	Save(ctx context.Context, u *User) error

	// AppendCredential adds a newly registered credential to the user.
	// Returns ErrCredentialExists if the credential id is already
	// registered for any user in the system; nothing is written in
	// that case.
	AppendCredential(ctx context.Context, userID string, cred Credential) error

	// UpdateCredentialCounter conditionally bumps a credential's
	// signature counter: the update applies only if the stored counter
	// still equals old. Returns ErrCounterConflict when the stored
	// value moved, so racing authentications from cloned authenticators
	// cannot both be accepted.
	UpdateCredentialCounter(ctx context.Context, userID, credentialID string, old, new uint32) error
}

// MemoryStore is an in-memory Store for development and testing.
// Returned users share storage with the store; callers mutate and Save.
type MemoryStore struct {
	mu        sync.RWMutex
	byID      map[string]*User
	byEmail   map[string]*User
	credOwner map[string]string // normalized credential id -> user id
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[string]*User),
		byEmail:   make(map[string]*User),
		credOwner: make(map[string]string),
	}
}

// GetByID retrieves a user by id.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

// GetByEmail retrieves a user by email address.
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

// Create persists a new user, assigning an ID if none is set.
func (s *MemoryStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(u.Email)
	if _, ok := s.byEmail[email]; ok {
		return ErrEmailTaken
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Credentials == nil {
		u.Credentials = []Credential{}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	s.byID[u.ID] = u
	s.byEmail[email] = u
	return nil
}

// Save persists changes to an existing user.
func (s *MemoryStore) Save(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[u.ID]; !ok {
		return ErrNotFound
	}
	s.byID[u.ID] = u
	s.byEmail[normalizeEmail(u.Email)] = u
	return nil
}

// AppendCredential adds a credential, enforcing system-wide uniqueness
// of the credential id.
func (s *MemoryStore) AppendCredential(ctx context.Context, userID string, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return ErrNotFound
	}

	key := NormalizeCredentialID(cred.CredentialID)
	if _, taken := s.credOwner[key]; taken {
		return ErrCredentialExists
	}

	u.Credentials = append(u.Credentials, cred)
	s.credOwner[key] = userID
	return nil
}

// UpdateCredentialCounter performs the compare-and-set counter bump.
func (s *MemoryStore) UpdateCredentialCounter(ctx context.Context, userID, credentialID string, old, new uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return ErrNotFound
	}

	want := NormalizeCredentialID(credentialID)
	for i := range u.Credentials {
		if NormalizeCredentialID(u.Credentials[i].CredentialID) != want {
			continue
		}
		if u.Credentials[i].Counter != old {
			return ErrCounterConflict
		}
		now := time.Now().UTC()
		u.Credentials[i].Counter = new
		u.Credentials[i].LastUsedAt = &now
		return nil
	}
	return ErrCredentialNotFound
}

// Count returns the number of users in the store.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
