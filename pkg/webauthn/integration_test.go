// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package webauthn

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureapprove/authd/pkg/user"
)

func newTestService(t *testing.T) (*Service, *user.MemoryStore, virtualwebauthn.RelyingParty) {
	t.Helper()

	cfg := &Config{
		RPID:          "example.com",
		RPDisplayName: "SecureApprove",
		RPOrigins:     []string{"https://example.com"},
	}

	users := user.NewMemoryStore()
	svc, err := NewService(ServiceParams{
		Config:     cfg,
		Users:      users,
		Challenges: NewMemoryChallengeStore(time.Minute),
	})
	require.NoError(t, err)

	rp := virtualwebauthn.RelyingParty{
		Name:   cfg.RPDisplayName,
		ID:     cfg.RPID,
		Origin: cfg.RPOrigins[0],
	}
	return svc, users, rp
}

func createTestUser(t *testing.T, users *user.MemoryStore, email string) *user.User {
	t.Helper()

	u := &user.User{
		Email:    email,
		Name:     "Test User",
		Role:     user.RoleRequester,
		IsActive: true,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

// registerCredential runs a full registration ceremony against the
// service with a virtual authenticator and enrolls the credential for
// later assertions.
func registerCredential(t *testing.T, svc *Service, rp virtualwebauthn.RelyingParty, userID string, authenticator *virtualwebauthn.Authenticator, credential *virtualwebauthn.Credential) {
	t.Helper()
	ctx := context.Background()

	options, err := svc.BeginRegistration(ctx, userID)
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)

	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	attestation := virtualwebauthn.CreateAttestationResponse(rp, *authenticator, *credential, *parsedOptions)
	parsedResponse, err := parseAttestationResponse(attestation)
	require.NoError(t, err)

	_, err = svc.FinishRegistration(ctx, userID, parsedResponse)
	require.NoError(t, err)

	authenticator.AddCredential(*credential)
}

// assertLogin runs a full authentication ceremony and returns the result.
func assertLogin(t *testing.T, svc *Service, rp virtualwebauthn.RelyingParty, email, userID string, authenticator *virtualwebauthn.Authenticator, credential *virtualwebauthn.Credential) (*user.User, error) {
	t.Helper()
	ctx := context.Background()

	options, _, err := svc.BeginLogin(ctx, email)
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)

	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertion := virtualwebauthn.CreateAssertionResponse(rp, *authenticator, *credential, *parsedOptions)
	parsedResponse, err := parseAssertionResponse(assertion)
	require.NoError(t, err)

	return svc.FinishLogin(ctx, userID, parsedResponse)
}

func TestIntegration_FullRegistrationFlow(t *testing.T) {
	ctx := context.Background()
	svc, users, rp := newTestService(t)
	u := createTestUser(t, users, "reg@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	options, err := svc.BeginRegistration(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, options)

	assert.Equal(t, "example.com", options.Response.RelyingParty.ID)
	assert.Equal(t, "SecureApprove", options.Response.RelyingParty.Name)
	assert.Equal(t, "reg@example.com", options.Response.User.Name)
	assert.NotEmpty(t, options.Response.Challenge)

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	attestation := virtualwebauthn.CreateAttestationResponse(rp, authenticator, credential, *parsedOptions)
	parsedResponse, err := parseAttestationResponse(attestation)
	require.NoError(t, err)

	cred, err := svc.FinishRegistration(ctx, u.ID, parsedResponse)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.NotEmpty(t, cred.CredentialID)
	assert.NotEmpty(t, cred.PublicKey)

	stored, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, stored.Credentials, 1)

	// The challenge is consumed, so finishing again requires a new Begin.
	_, err = svc.FinishRegistration(ctx, u.ID, parsedResponse)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestIntegration_BeginRegistrationUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.BeginRegistration(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestIntegration_RegistrationExcludesExistingCredentials(t *testing.T) {
	ctx := context.Background()
	svc, users, rp := newTestService(t)
	u := createTestUser(t, users, "multi@example.com")

	auth1 := virtualwebauthn.NewAuthenticator()
	cred1 := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, rp, u.ID, &auth1, &cred1)

	options, err := svc.BeginRegistration(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, options.Response.CredentialExcludeList, 1)

	auth2 := virtualwebauthn.NewAuthenticator()
	cred2 := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, rp, u.ID, &auth2, &cred2)

	stored, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Credentials, 2)
}

func TestIntegration_FullLoginFlow(t *testing.T) {
	ctx := context.Background()
	svc, users, rp := newTestService(t)
	u := createTestUser(t, users, "login@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, rp, u.ID, &authenticator, &credential)

	options, beginUser, err := svc.BeginLogin(ctx, "login@example.com")
	require.NoError(t, err)
	require.NotNil(t, options)
	assert.Equal(t, u.ID, beginUser.ID)
	assert.NotEmpty(t, options.Response.Challenge)
	assert.Equal(t, "example.com", options.Response.RelyingPartyID)

	credential.Counter++

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertion := virtualwebauthn.CreateAssertionResponse(rp, authenticator, credential, *parsedOptions)
	parsedResponse, err := parseAssertionResponse(assertion)
	require.NoError(t, err)

	loggedIn, err := svc.FinishLogin(ctx, u.ID, parsedResponse)
	require.NoError(t, err)
	assert.Equal(t, u.ID, loggedIn.ID)
	assert.NotNil(t, loggedIn.LastLoginAt)

	stored, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stored.Credentials[0].Counter)
	assert.NotNil(t, stored.Credentials[0].LastUsedAt)
}

func TestIntegration_LoginChallengeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	svc, users, rp := newTestService(t)
	u := createTestUser(t, users, "replay@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, rp, u.ID, &authenticator, &credential)

	options, _, err := svc.BeginLogin(ctx, "replay@example.com")
	require.NoError(t, err)

	credential.Counter++

	optionsJSON, _ := json.Marshal(options.Response)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertion := virtualwebauthn.CreateAssertionResponse(rp, authenticator, credential, *parsedOptions)
	parsedResponse, err := parseAssertionResponse(assertion)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, u.ID, parsedResponse)
	require.NoError(t, err)

	// Replaying the same assertion fails because the challenge is gone.
	_, err = svc.FinishLogin(ctx, u.ID, parsedResponse)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestIntegration_ReissuedChallengeInvalidatesPrevious(t *testing.T) {
	ctx := context.Background()
	svc, users, rp := newTestService(t)
	u := createTestUser(t, users, "reissue@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, rp, u.ID, &authenticator, &credential)

	firstOptions, _, err := svc.BeginLogin(ctx, "reissue@example.com")
	require.NoError(t, err)

	// A second Begin replaces the pending challenge.
	_, _, err = svc.BeginLogin(ctx, "reissue@example.com")
	require.NoError(t, err)

	credential.Counter++

	optionsJSON, _ := json.Marshal(firstOptions.Response)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertion := virtualwebauthn.CreateAssertionResponse(rp, authenticator, credential, *parsedOptions)
	parsedResponse, err := parseAssertionResponse(assertion)
	require.NoError(t, err)

	// Answering the superseded challenge fails verification.
	_, err = svc.FinishLogin(ctx, u.ID, parsedResponse)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestIntegration_ZeroCounterAccepted(t *testing.T) {
	svc, users, rp := newTestService(t)
	u := createTestUser(t, users, "zero@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, rp, u.ID, &authenticator, &credential)

	// Authenticators without a counter report zero forever. Stored and
	// response counters both zero must not trip clone detection.
	_, err := assertLogin(t, svc, rp, "zero@example.com", u.ID, &authenticator, &credential)
	assert.NoError(t, err)
}

func TestIntegration_NonAdvancingCounterRejected(t *testing.T) {
	svc, users, rp := newTestService(t)
	u := createTestUser(t, users, "clone@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, rp, u.ID, &authenticator, &credential)

	credential.Counter++
	_, err := assertLogin(t, svc, rp, "clone@example.com", u.ID, &authenticator, &credential)
	require.NoError(t, err)

	// A second assertion with the same counter value looks like a clone.
	_, err = assertLogin(t, svc, rp, "clone@example.com", u.ID, &authenticator, &credential)
	assert.ErrorIs(t, err, ErrClonedAuthenticator)
}

func TestIntegration_LoginWithoutCredentials(t *testing.T) {
	ctx := context.Background()

	users := user.NewMemoryStore()
	challenges := NewMemoryChallengeStore(time.Minute)
	svc, err := NewService(ServiceParams{
		Config: &Config{
			RPID:          "example.com",
			RPDisplayName: "SecureApprove",
			RPOrigins:     []string{"https://example.com"},
		},
		Users:      users,
		Challenges: challenges,
	})
	require.NoError(t, err)

	createTestUser(t, users, "nocreds@example.com")

	_, _, err = svc.BeginLogin(ctx, "nocreds@example.com")
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.Equal(t, 0, challenges.Count(), "rejected begin must not leave a challenge behind")

	_, _, err = svc.BeginLogin(ctx, "unknown@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestIntegration_DisabledAccountRejected(t *testing.T) {
	ctx := context.Background()
	svc, users, rp := newTestService(t)
	u := createTestUser(t, users, "disabled@example.com")

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, rp, u.ID, &authenticator, &credential)

	options, _, err := svc.BeginLogin(ctx, "disabled@example.com")
	require.NoError(t, err)

	u.IsActive = false
	require.NoError(t, users.Save(ctx, u))

	credential.Counter++

	optionsJSON, _ := json.Marshal(options.Response)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	assertion := virtualwebauthn.CreateAssertionResponse(rp, authenticator, credential, *parsedOptions)
	parsedResponse, err := parseAssertionResponse(assertion)
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, u.ID, parsedResponse)
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestIntegration_LegacyRoleNormalized(t *testing.T) {
	ctx := context.Background()
	svc, users, rp := newTestService(t)

	u := &user.User{
		Email:    "legacy@example.com",
		Name:     "Legacy User",
		Role:     user.Role("user"),
		IsActive: true,
	}
	require.NoError(t, users.Create(ctx, u))

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerCredential(t, svc, rp, u.ID, &authenticator, &credential)

	credential.Counter++
	loggedIn, err := assertLogin(t, svc, rp, "legacy@example.com", u.ID, &authenticator, &credential)
	require.NoError(t, err)
	assert.Equal(t, user.RoleRequester, loggedIn.Role)
}

// parseAttestationResponse parses a virtual authenticator attestation
// response into the format expected by go-webauthn.
func parseAttestationResponse(attestation string) (*protocol.ParsedCredentialCreationData, error) {
	var ccr protocol.CredentialCreationResponse
	if err := json.Unmarshal([]byte(attestation), &ccr); err != nil {
		return nil, err
	}
	return ccr.Parse()
}

// parseAssertionResponse parses a virtual authenticator assertion
// response into the format expected by go-webauthn.
func parseAssertionResponse(assertion string) (*protocol.ParsedCredentialAssertionData, error) {
	var car protocol.CredentialAssertionResponse
	if err := json.Unmarshal([]byte(assertion), &car); err != nil {
		return nil, err
	}
	return car.Parse()
}
