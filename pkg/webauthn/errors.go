// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package webauthn

import (
	"errors"
	"fmt"
)

// Sentinel errors for ceremony operations.
var (
	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrChallengeNotFound is returned when no pending challenge exists
	// for the user or the challenge has expired.
	ErrChallengeNotFound = errors.New("challenge not found or expired")

	// ErrCredentialNotFound is returned when the asserted credential is
	// not registered to the user.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists is returned when the credential id is already
	// registered, possibly to another user.
	ErrCredentialExists = errors.New("credential already registered")

	// ErrVerificationFailed is returned when attestation or assertion
	// verification fails.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrNoCredentials is returned when a user has no registered credentials.
	ErrNoCredentials = errors.New("no credentials registered for this user")

	// ErrClonedAuthenticator is returned when the signature counter
	// indicates a cloned authenticator.
	ErrClonedAuthenticator = errors.New("cloned authenticator detected")

	// ErrAccountDisabled is returned when the user account is deactivated.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("webauthn service not configured")
)

// CeremonyError wraps an error with the operation that produced it.
type CeremonyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *CeremonyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *CeremonyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *CeremonyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new CeremonyError with the given operation and error.
func NewError(op string, err error) error {
	return &CeremonyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsUserNotFound returns true if the error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsChallengeNotFound returns true if the error indicates a missing or
// expired challenge.
func IsChallengeNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound)
}

// IsCredentialNotFound returns true if the error indicates a credential was not found.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsVerificationFailed returns true if the error indicates verification failed.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}

// IsClonedAuthenticator returns true if the error indicates a cloned authenticator.
func IsClonedAuthenticator(err error) bool {
	return errors.Is(err, ErrClonedAuthenticator)
}
