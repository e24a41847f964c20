// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package user

import "errors"

// Sentinel errors for user and credential storage.
var (
	// ErrNotFound is returned when a user cannot be found.
	ErrNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when creating a user with an email that
	// already belongs to a fully registered account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrCredentialExists is returned when a credential id is already
	// registered, for this or any other user.
	ErrCredentialExists = errors.New("credential already registered")

	// ErrCredentialNotFound is returned when a credential cannot be
	// found on the user.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCounterConflict is returned when a conditional counter update
	// loses the race: the stored counter moved since it was read.
	ErrCounterConflict = errors.New("credential counter changed concurrently")
)
