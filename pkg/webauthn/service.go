// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package webauthn

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/secureapprove/authd/pkg/user"
)

// Service orchestrates WebAuthn registration and authentication
// ceremonies. A ceremony spans two calls: Begin issues a challenge and
// parks the session data in the challenge store, Finish consumes the
// challenge and verifies the authenticator response. Challenges are
// single use; every Finish removes the pending challenge whether or not
// verification succeeds.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	users      user.Store
	challenges ChallengeStore
	configured bool
}

// ServiceParams contains dependencies for creating a ceremony service.
type ServiceParams struct {
	// Config is the relying party configuration (required).
	Config *Config

	// Users is the user persistence layer (required).
	Users user.Store

	// Challenges is the pending challenge store (required).
	Challenges ChallengeStore
}

// NewService creates a new ceremony service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.Challenges == nil {
		return nil, fmt.Errorf("challenge store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		users:      params.Users,
		challenges: params.Challenges,
		configured: true,
	}, nil
}

// BeginRegistration starts a registration ceremony for an existing user.
// Credentials already registered to the user are excluded so an
// authenticator cannot enroll twice. Any prior pending challenge for the
// user is replaced.
func (s *Service) BeginRegistration(ctx context.Context, userID string) (*protocol.CredentialCreation, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, WrapError("get user", err)
	}

	options, session, err := s.webauthn.BeginRegistration(u,
		webauthn.WithExclusions(u.CredentialDescriptors()),
	)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	if err := s.challenges.Put(ctx, u.ID, session); err != nil {
		return nil, WrapError("store challenge", err)
	}

	return options, nil
}

// FinishRegistration completes a registration ceremony and persists the
// new credential. The pending challenge is consumed regardless of the
// outcome, so a failed attempt requires a fresh Begin.
func (s *Service) FinishRegistration(ctx context.Context, userID string, response *protocol.ParsedCredentialCreationData) (*user.Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, WrapError("get user", err)
	}

	session, err := s.challenges.Get(ctx, u.ID)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, WrapError("get challenge", err)
	}
	defer s.challenges.Delete(ctx, u.ID)

	waCred, err := s.webauthn.CreateCredential(u, *session, response)
	if err != nil {
		return nil, WrapError("verify attestation", ErrVerificationFailed)
	}

	cred := user.NewCredential(waCred, transportStrings(waCred.Transport))
	if err := s.users.AppendCredential(ctx, u.ID, cred); err != nil {
		if errors.Is(err, user.ErrCredentialExists) {
			return nil, ErrCredentialExists
		}
		return nil, WrapError("store credential", err)
	}

	// Older accounts may still carry the legacy role value.
	if u.NormalizeLegacyRole() {
		if err := s.users.Save(ctx, u); err != nil {
			return nil, WrapError("save user", err)
		}
	}

	return &cred, nil
}

// BeginLogin starts an authentication ceremony for the user identified
// by email. Users without credentials are rejected before any challenge
// is issued. The returned user carries the id the client must echo back
// to FinishLogin.
func (s *Service) BeginLogin(ctx context.Context, email string) (*protocol.CredentialAssertion, *user.User, error) {
	if !s.configured {
		return nil, nil, ErrNotConfigured
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, WrapError("get user", err)
	}

	if len(u.Credentials) == 0 {
		return nil, nil, ErrNoCredentials
	}

	options, session, err := s.webauthn.BeginLogin(u)
	if err != nil {
		return nil, nil, WrapError("begin login", err)
	}

	if err := s.challenges.Put(ctx, u.ID, session); err != nil {
		return nil, nil, WrapError("store challenge", err)
	}

	return options, u, nil
}

// FinishLogin completes an authentication ceremony. The signature
// counter is advanced with a compare-and-set so two concurrent
// assertions over the same credential cannot both succeed, and a
// non-advancing counter is treated as a cloned authenticator.
func (s *Service) FinishLogin(ctx context.Context, userID string, response *protocol.ParsedCredentialAssertionData) (*user.User, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, WrapError("get user", err)
	}

	if !u.IsActive {
		return nil, ErrAccountDisabled
	}

	session, err := s.challenges.Get(ctx, u.ID)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, WrapError("get challenge", err)
	}
	defer s.challenges.Delete(ctx, u.ID)

	incomingID := base64.RawURLEncoding.EncodeToString(response.RawID)
	stored, ok := u.FindCredential(incomingID)
	if !ok {
		return nil, ErrCredentialNotFound
	}

	waCred, err := s.webauthn.ValidateLogin(u, *session, response)
	if err != nil {
		return nil, WrapError("verify assertion", ErrVerificationFailed)
	}

	// ValidateLogin flags a non-advancing counter but does not fail.
	if waCred.Authenticator.CloneWarning {
		return nil, ErrClonedAuthenticator
	}

	err = s.users.UpdateCredentialCounter(ctx, u.ID, stored.CredentialID, stored.Counter, waCred.Authenticator.SignCount)
	if err != nil {
		if errors.Is(err, user.ErrCounterConflict) {
			return nil, ErrClonedAuthenticator
		}
		if errors.Is(err, user.ErrCredentialNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, WrapError("update counter", err)
	}

	now := time.Now().UTC()
	u.LastLoginAt = &now
	u.NormalizeLegacyRole()
	if err := s.users.Save(ctx, u); err != nil {
		return nil, WrapError("save user", err)
	}

	return u, nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

func transportStrings(transports []protocol.AuthenticatorTransport) []string {
	out := make([]string, len(transports))
	for i, t := range transports {
		out[i] = string(t)
	}
	return out
}
