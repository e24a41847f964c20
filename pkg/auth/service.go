// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

// Package auth composes the WebAuthn ceremony service and the token
// issuer into the account-facing authentication flows: registration,
// login, token refresh, and logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/secureapprove/authd/pkg/metrics"
	"github.com/secureapprove/authd/pkg/token"
	"github.com/secureapprove/authd/pkg/user"
	"github.com/secureapprove/authd/pkg/webauthn"
)

// Service implements the authentication flows on top of the ceremony
// service and token issuer.
type Service struct {
	users      user.Store
	ceremonies *webauthn.Service
	tokens     *token.Issuer
	challenges webauthn.ChallengeStore
	logger     *slog.Logger
}

// ServiceParams contains dependencies for creating an auth service.
type ServiceParams struct {
	// Users is the user persistence layer (required).
	Users user.Store

	// Ceremonies is the WebAuthn ceremony service (required).
	Ceremonies *webauthn.Service

	// Tokens is the JWT issuer (required).
	Tokens *token.Issuer

	// Challenges is the pending challenge store, used to discard
	// challenges on logout (required).
	Challenges webauthn.ChallengeStore

	// Logger is the structured logger. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewService creates a new auth service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.Ceremonies == nil {
		return nil, fmt.Errorf("ceremony service is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if params.Challenges == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:      params.Users,
		ceremonies: params.Ceremonies,
		tokens:     params.Tokens,
		challenges: params.Challenges,
		logger:     logger,
	}, nil
}

// RegisterParams describes a new account.
type RegisterParams struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     user.Role `json:"role,omitempty"`
	TenantID string    `json:"tenantId,omitempty"`
}

// RegisterResult is the outcome of account creation. Message is set
// when an existing credential-less account may resume registration.
type RegisterResult struct {
	user.Summary
	Message string `json:"message,omitempty"`
}

// SessionResult is the outcome of a verified ceremony: the user summary
// and a fresh token pair.
type SessionResult struct {
	Message string       `json:"message"`
	User    user.Summary `json:"user"`
	token.Pair
}

// AuthenticationChallenge pairs assertion options with the user id the
// client must echo back to VerifyAuthentication.
type AuthenticationChallenge struct {
	Options *protocol.CredentialAssertion `json:"options"`
	UserID  string                        `json:"userId"`
}

// Register creates a new account with no credentials. An existing
// account that never finished enrolling a credential is returned as-is
// so the client can resume the ceremony; an account with credentials is
// a conflict.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	existing, err := s.users.GetByEmail(ctx, params.Email)
	if err == nil {
		if len(existing.Credentials) == 0 {
			return &RegisterResult{
				Summary: existing.Summary(),
				Message: "User exists but needs to complete WebAuthn registration",
			}, nil
		}
		return nil, user.ErrEmailTaken
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	role := params.Role
	if role == "" {
		role = user.RoleRequester
	}

	u := &user.User{
		Name:     params.Name,
		Email:    params.Email,
		Role:     role.Normalized(),
		TenantID: params.TenantID,
		IsActive: true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "userId", u.ID, "email", u.Email, "role", u.Role)
	return &RegisterResult{Summary: u.Summary()}, nil
}

// RegistrationOptions issues a registration challenge for the user.
func (s *Service) RegistrationOptions(ctx context.Context, userID string) (*protocol.CredentialCreation, error) {
	return s.ceremonies.BeginRegistration(ctx, userID)
}

// VerifyRegistration completes credential enrollment and issues the
// first token pair for the account.
func (s *Service) VerifyRegistration(ctx context.Context, userID string, response *protocol.ParsedCredentialCreationData) (*SessionResult, error) {
	start := time.Now()

	cred, err := s.ceremonies.FinishRegistration(ctx, userID, response)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusError, time.Since(start).Seconds())
		s.logger.Warn("registration verification failed", "userId", userID, "error", err)
		return nil, err
	}
	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusSuccess, time.Since(start).Seconds())

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	pair, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	metrics.RecordTokens(metrics.TokenIssued)

	s.logger.Info("credential registered", "userId", u.ID, "credentialId", cred.CredentialID)
	return &SessionResult{
		Message: "Registration successful",
		User:    u.Summary(),
		Pair:    pair,
	}, nil
}

// AuthenticationOptions issues a login challenge for the account
// identified by email.
func (s *Service) AuthenticationOptions(ctx context.Context, email string) (*AuthenticationChallenge, error) {
	options, u, err := s.ceremonies.BeginLogin(ctx, email)
	if err != nil {
		return nil, err
	}
	return &AuthenticationChallenge{
		Options: options,
		UserID:  u.ID,
	}, nil
}

// VerifyAuthentication completes a login ceremony and issues a token pair.
func (s *Service) VerifyAuthentication(ctx context.Context, userID string, response *protocol.ParsedCredentialAssertionData) (*SessionResult, error) {
	start := time.Now()

	u, err := s.ceremonies.FinishLogin(ctx, userID, response)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.StatusError, time.Since(start).Seconds())
		s.logger.Warn("authentication verification failed", "userId", userID, "error", err)
		return nil, err
	}
	metrics.RecordCeremony(metrics.CeremonyAuthentication, metrics.StatusSuccess, time.Since(start).Seconds())

	pair, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	metrics.RecordTokens(metrics.TokenIssued)

	s.logger.Info("user authenticated", "userId", u.ID, "email", u.Email)
	return &SessionResult{
		Message: "Authentication successful",
		User:    u.Summary(),
		Pair:    pair,
	}, nil
}

// Refresh rotates a refresh token into a fresh token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	pair, u, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		s.logger.Warn("token refresh rejected")
		return token.Pair{}, err
	}
	metrics.RecordTokens(metrics.TokenRefreshed)
	s.logger.Info("tokens refreshed", "userId", u.ID)
	return pair, nil
}

// Logout discards any pending challenge for the user. Tokens are
// stateless and expire on their own.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.challenges.Delete(ctx, userID); err != nil {
		return fmt.Errorf("discard challenge: %w", err)
	}
	s.logger.Info("user logged out", "userId", userID)
	return nil
}

// ValidateAccess verifies an access token and returns the account it
// belongs to, or nil when the token or account is not usable.
func (s *Service) ValidateAccess(ctx context.Context, accessToken string) (*user.User, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, webauthn.ErrAccountDisabled
	}
	return u, nil
}
