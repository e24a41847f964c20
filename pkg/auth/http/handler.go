// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/secureapprove/authd/pkg/auth"
	"github.com/secureapprove/authd/pkg/token"
	"github.com/secureapprove/authd/pkg/user"
	"github.com/secureapprove/authd/pkg/webauthn"
)

// Handler provides HTTP handlers for the authentication flows.
// These handlers can be mounted on any HTTP router.
type Handler struct {
	service *auth.Service
	logger  *slog.Logger
}

// NewHandler creates a new auth HTTP handler.
func NewHandler(service *auth.Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// Register handles POST /auth/register
//
// Request body:
//
//	{
//	    "name": "Alice",
//	    "email": "alice@example.com",
//	    "role": "requester" // optional
//	}
//
// Response: the created (or resumable) account summary.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "name and email are required")
		return
	}

	result, err := h.service.Register(r.Context(), auth.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		TenantID: req.TenantID,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// RegistrationOptions handles POST /auth/register/options
//
// Request body: {"userId": "..."}
// Response: WebAuthn PublicKeyCredentialCreationOptions
func (h *Handler) RegistrationOptions(w http.ResponseWriter, r *http.Request) {
	var req OptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "userId is required")
		return
	}

	options, err := h.service.RegistrationOptions(r.Context(), req.UserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, options)
}

// VerifyRegistration handles POST /auth/register/verify
//
// Request body: {"userId": "...", "response": { attestation response }}
// Response: session result with user summary and token pair.
func (h *Handler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.UserID == "" || len(req.Response) == 0 {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "userId and response are required")
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid attestation response")
		return
	}

	result, err := h.service.VerifyRegistration(r.Context(), req.UserID, response)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// AuthenticationOptions handles POST /auth/login/options
//
// Request body: {"email": "..."}
// Response: {"options": { assertion options }, "userId": "..."}
func (h *Handler) AuthenticationOptions(w http.ResponseWriter, r *http.Request) {
	var req LoginOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "email is required")
		return
	}

	challenge, err := h.service.AuthenticationOptions(r.Context(), req.Email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, challenge)
}

// VerifyAuthentication handles POST /auth/login/verify
//
// Request body: {"userId": "...", "response": { assertion response }}
// Response: session result with user summary and token pair.
func (h *Handler) VerifyAuthentication(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.UserID == "" || len(req.Response) == 0 {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "userId and response are required")
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid assertion response")
		return
	}

	result, err := h.service.VerifyAuthentication(r.Context(), req.UserID, response)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// Refresh handles POST /auth/refresh
//
// Request body: {"refreshToken": "..."}
// Response: a fresh token pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "refresh token is required")
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, pair)
}

// Logout handles POST /auth/logout
//
// Request body: {"userId": "..."}
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "userId is required")
		return
	}

	if err := h.service.Logout(r.Context(), req.UserID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// handleServiceError maps service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrEmailTaken):
		h.writeError(w, http.StatusConflict, ErrorCodeConflict, "Email already registered")
	case errors.Is(err, webauthn.ErrCredentialExists):
		h.writeError(w, http.StatusConflict, ErrorCodeConflict, "credential already registered")
	case errors.Is(err, webauthn.ErrNoCredentials):
		h.writeError(w, http.StatusBadRequest, ErrorCodeNoCredentials, "No credentials registered for this user")
	case errors.Is(err, webauthn.ErrUserNotFound):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "User not found")
	case errors.Is(err, webauthn.ErrChallengeNotFound):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "challenge not found or expired")
	case errors.Is(err, webauthn.ErrCredentialNotFound):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "Credential not found")
	case errors.Is(err, webauthn.ErrClonedAuthenticator):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeVerificationFailed, "cloned authenticator detected")
	case errors.Is(err, webauthn.ErrAccountDisabled):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "User account is disabled")
	case errors.Is(err, webauthn.ErrVerificationFailed):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeVerificationFailed, "verification failed")
	case errors.Is(err, token.ErrInvalidRefreshToken):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "Invalid refresh token")
	default:
		h.logger.Error("unhandled service error", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
