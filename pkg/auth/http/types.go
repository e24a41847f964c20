// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package http

import (
	"encoding/json"

	"github.com/secureapprove/authd/pkg/user"
)

// RegisterRequest is the request body for account creation.
type RegisterRequest struct {
	// Name is the user's display name (required).
	Name string `json:"name"`

	// Email is the user's email address (required).
	Email string `json:"email"`

	// Role is the initial role (optional, defaults to requester).
	Role user.Role `json:"role,omitempty"`

	// TenantID scopes the account to a tenant (optional).
	TenantID string `json:"tenantId,omitempty"`
}

// OptionsRequest is the request body for issuing a registration challenge.
type OptionsRequest struct {
	// UserID identifies the account (required).
	UserID string `json:"userId"`
}

// VerifyRequest is the request body for finishing a ceremony. Response
// carries the raw authenticator response as produced by the browser.
type VerifyRequest struct {
	// UserID identifies the account (required).
	UserID string `json:"userId"`

	// Response is the authenticator's attestation or assertion response.
	Response json.RawMessage `json:"response"`
}

// LoginOptionsRequest is the request body for issuing a login challenge.
type LoginOptionsRequest struct {
	// Email identifies the account (required).
	Email string `json:"email"`
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest is the request body for logout.
type LogoutRequest struct {
	UserID string `json:"userId"`
}

// MessageResponse is a plain informational response.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeUnauthorized       = "unauthorized"
	ErrorCodeConflict           = "conflict"
	ErrorCodeNoCredentials      = "no_credentials"
	ErrorCodeVerificationFailed = "verification_failed"
	ErrorCodeInternalError      = "internal_error"
)
