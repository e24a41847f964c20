// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package webauthn

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCeremonyError_Error(t *testing.T) {
	err := NewError("begin login", ErrUserNotFound)
	assert.Equal(t, "begin login: user not found", err.Error())

	bare := &CeremonyError{Err: ErrUserNotFound}
	assert.Equal(t, "user not found", bare.Error())
}

func TestCeremonyError_Unwrap(t *testing.T) {
	err := NewError("verify assertion", ErrVerificationFailed)
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestWrapError_Nil(t *testing.T) {
	assert.NoError(t, WrapError("anything", nil))
}

func TestWrapError_DoubleWrap(t *testing.T) {
	inner := WrapError("get challenge", ErrChallengeNotFound)
	outer := fmt.Errorf("finish login: %w", inner)
	assert.ErrorIs(t, outer, ErrChallengeNotFound)
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name string
		pred func(error) bool
		err  error
	}{
		{"user not found", IsUserNotFound, ErrUserNotFound},
		{"challenge not found", IsChallengeNotFound, ErrChallengeNotFound},
		{"credential not found", IsCredentialNotFound, ErrCredentialNotFound},
		{"verification failed", IsVerificationFailed, ErrVerificationFailed},
		{"cloned authenticator", IsClonedAuthenticator, ErrClonedAuthenticator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(tt.err))
			assert.True(t, tt.pred(WrapError("op", tt.err)))
			assert.False(t, tt.pred(errors.New("unrelated")))
			assert.False(t, tt.pred(nil))
		})
	}
}
