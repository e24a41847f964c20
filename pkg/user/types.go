// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

// Package user provides the user and credential model for the
// SecureApprove authentication service. Users authenticate with
// FIDO2/WebAuthn passkeys; each user carries the set of credentials
// registered for their account along with the role and tenant the
// issued tokens are bound to.
package user

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Role represents a user's role for access control.
type Role string

const (
	// RoleSuperAdmin manages tenants across the whole installation.
	RoleSuperAdmin Role = "superadmin"
	// RoleTenantAdmin manages users and settings within one tenant.
	RoleTenantAdmin Role = "tenant_admin"
	// RoleRequester submits approval requests.
	RoleRequester Role = "requester"
	// RoleApprover approves or rejects requests.
	RoleApprover Role = "approver"
	// RoleAuditor has read-only access to the audit trail.
	RoleAuditor Role = "auditor"

	// roleLegacyUser predates the current taxonomy. Stored documents may
	// still carry it; it maps to RoleRequester.
	roleLegacyUser Role = "user"
)

// IsValid reports whether the role is part of the current taxonomy.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleRequester, RoleApprover, RoleAuditor:
		return true
	default:
		return false
	}
}

// Normalized maps legacy role values to the current taxonomy. Tokens
// must never be minted with a legacy role, so the ceremony success
// paths normalize before persisting and issuing.
func (r Role) Normalized() Role {
	if r == roleLegacyUser {
		return RoleRequester
	}
	return r
}

// User represents an account that authenticates with WebAuthn.
// Implements webauthn.User so it can be passed to ceremony operations.
type User struct {
	// ID is the unique user identifier (also the WebAuthn user handle).
	ID string `json:"id"`

	// Email is the user's unique email address (WebAuthn username).
	Email string `json:"email"`

	// Name is the human-readable display name.
	Name string `json:"name"`

	// Role defines the user's access level.
	Role Role `json:"role"`

	// TenantID is the tenant this user belongs to, empty for superadmins.
	TenantID string `json:"tenant_id,omitempty"`

	// IsActive indicates whether the account may authenticate.
	IsActive bool `json:"is_active"`

	// Credentials are the WebAuthn credentials registered for this user.
	Credentials []Credential `json:"credentials"`

	// CreatedAt is when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// LastLoginAt is the last successful authentication time.
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Credential is a WebAuthn credential as persisted on the user.
// Binary fields are stored as standard base64 strings.
type Credential struct {
	// CredentialID is the authenticator-assigned credential identifier,
	// standard base64 encoded. Unique across all users.
	CredentialID string `json:"credentialId"`

	// PublicKey is the COSE public key, standard base64 encoded.
	PublicKey string `json:"publicKey"`

	// Counter is the signature counter reported by the authenticator.
	// Monotonically non-decreasing; used for clone detection.
	Counter uint32 `json:"counter"`

	// Transports are hints for how the authenticator communicates.
	Transports []string `json:"transports"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential last completed an authentication.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// NormalizeCredentialID converts a credential id in either standard or
// URL-safe base64, padded or not, to its canonical comparison form:
// standard alphabet with padding stripped. Browsers send the url-safe
// unpadded form while storage uses standard base64, so both sides must
// be normalized before comparison.
func NormalizeCredentialID(id string) string {
	id = strings.ReplaceAll(id, "-", "+")
	id = strings.ReplaceAll(id, "_", "/")
	return strings.TrimRight(id, "=")
}

// NewCredential converts a verified go-webauthn credential into the
// stored representation.
func NewCredential(cred *webauthn.Credential, transports []string) Credential {
	if transports == nil {
		transports = []string{}
	}
	return Credential{
		CredentialID: base64.StdEncoding.EncodeToString(cred.ID),
		PublicKey:    base64.StdEncoding.EncodeToString(cred.PublicKey),
		Counter:      cred.Authenticator.SignCount,
		Transports:   transports,
		CreatedAt:    time.Now().UTC(),
	}
}

// FindCredential returns the stored credential matching an incoming
// ceremony credential id, normalizing both sides first.
func (u *User) FindCredential(incomingID string) (*Credential, bool) {
	want := NormalizeCredentialID(incomingID)
	for i := range u.Credentials {
		if NormalizeCredentialID(u.Credentials[i].CredentialID) == want {
			return &u.Credentials[i], true
		}
	}
	return nil, false
}

// NormalizeLegacyRole rewrites a legacy role value in place and reports
// whether a rewrite happened.
func (u *User) NormalizeLegacyRole() bool {
	normalized := u.Role.Normalized()
	if normalized == u.Role {
		return false
	}
	u.Role = normalized
	return true
}

// WebAuthnID returns the user's WebAuthn user handle.
func (u *User) WebAuthnID() []byte {
	return []byte(u.ID)
}

// WebAuthnName returns the user's username.
func (u *User) WebAuthnName() string {
	return u.Email
}

// WebAuthnDisplayName returns the user's display name.
func (u *User) WebAuthnDisplayName() string {
	if u.Name == "" {
		return u.Email
	}
	return u.Name
}

// WebAuthnCredentials returns the user's credentials decoded into the
// go-webauthn representation. Credentials that fail to decode are
// skipped rather than aborting the ceremony.
func (u *User) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, 0, len(u.Credentials))
	for _, c := range u.Credentials {
		id, err := decodeStored(c.CredentialID)
		if err != nil {
			continue
		}
		key, err := decodeStored(c.PublicKey)
		if err != nil {
			continue
		}
		creds = append(creds, webauthn.Credential{
			ID:        id,
			PublicKey: key,
			Transport: transportHints(c.Transports),
			Authenticator: webauthn.Authenticator{
				SignCount: c.Counter,
			},
		})
	}
	return creds
}

// CredentialDescriptors returns descriptors for the user's stored
// credentials, used as the exclude list during registration so an
// authenticator refuses to re-register a known credential.
func (u *User) CredentialDescriptors() []protocol.CredentialDescriptor {
	descriptors := make([]protocol.CredentialDescriptor, 0, len(u.Credentials))
	for _, c := range u.Credentials {
		id, err := decodeStored(c.CredentialID)
		if err != nil {
			continue
		}
		descriptors = append(descriptors, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: id,
			Transport:    transportHints(c.Transports),
		})
	}
	return descriptors
}

// Summary is the user projection returned to clients after a
// successful ceremony.
type Summary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenantId,omitempty"`
}

// Summary returns the client-facing projection of the user.
func (u *User) Summary() Summary {
	return Summary{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		TenantID: u.TenantID,
	}
}

// decodeStored decodes a stored base64 value, tolerating both padded
// standard and unpadded url-safe forms.
func decodeStored(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(NormalizeCredentialID(s))
}

func transportHints(transports []string) []protocol.AuthenticatorTransport {
	hints := make([]protocol.AuthenticatorTransport, len(transports))
	for i, t := range transports {
		hints[i] = protocol.AuthenticatorTransport(t)
	}
	return hints
}
