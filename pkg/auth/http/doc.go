// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

// Package http provides HTTP handlers for the authentication flows:
// account registration, WebAuthn ceremonies, token refresh, and logout.
//
// The handlers are plain http.HandlerFunc values; MountChi wires them
// onto a chi router under the conventional /auth prefix.
package http
