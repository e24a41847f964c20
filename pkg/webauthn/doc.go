// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

// Package webauthn implements the server side of WebAuthn (FIDO2)
// registration and authentication ceremonies.
//
// A ceremony is a two-step exchange: Begin issues a challenge and
// stores the session data in a ChallengeStore keyed by user id, Finish
// consumes that challenge and verifies the authenticator response.
// Challenges are strictly single use. A user holds at most one pending
// challenge at a time; beginning a new ceremony replaces the old one.
//
// # Architecture
//
//  1. Service - ceremony orchestration on top of go-webauthn/webauthn
//  2. ChallengeStore - pending challenge persistence (memory or Redis)
//  3. user.Store - user and credential persistence
//
// # Usage
//
//	svc, err := webauthn.NewService(webauthn.ServiceParams{
//	    Config: &webauthn.Config{
//	        RPID:          "localhost",
//	        RPDisplayName: "SecureApprove",
//	        RPOrigins:     []string{"https://localhost:3000"},
//	    },
//	    Users:      user.NewMemoryStore(),
//	    Challenges: webauthn.NewMemoryChallengeStore(60 * time.Second),
//	})
//
// Note: WebAuthn requires HTTPS for all operations. Browsers will only
// expose the WebAuthn API in secure contexts.
package webauthn
