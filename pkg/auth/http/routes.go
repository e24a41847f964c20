// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

package http

import (
	"github.com/go-chi/chi/v5"
)

// MountChi mounts the authentication routes on a chi router.
//
// Example:
//
//	handler := authhttp.NewHandler(svc)
//	r.Route("/auth", func(r chi.Router) {
//	    authhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Post("/register", h.Register)
	r.Post("/register/options", h.RegistrationOptions)
	r.Post("/register/verify", h.VerifyRegistration)
	r.Post("/login/options", h.AuthenticationOptions)
	r.Post("/login/verify", h.VerifyAuthentication)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
}
