// Copyright (c) 2026 SecureApprove, Inc.
// SPDX-License-Identifier: MIT

// Package token issues and verifies the JWT pairs handed out after a
// successful WebAuthn ceremony. Access and refresh tokens are signed
// with independent HS256 secrets so a leaked access secret cannot mint
// refresh tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/errgroup"

	"github.com/secureapprove/authd/pkg/user"
)

// ErrInvalidRefreshToken is returned for any refresh failure. The cause
// is deliberately not disclosed to the caller.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// Claims are the JWT claims carried by both token types.
type Claims struct {
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	TenantID *string `json:"tenantId"`
	jwt.RegisteredClaims
}

// Pair is an access/refresh token pair.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Config configures the token issuer.
type Config struct {
	// AccessSecret signs access tokens (required).
	AccessSecret string `yaml:"access_secret" json:"-"`

	// RefreshSecret signs refresh tokens (required).
	RefreshSecret string `yaml:"refresh_secret" json:"-"`

	// AccessTTL is the access token lifetime. Default: 15m
	AccessTTL time.Duration `yaml:"access_ttl" json:"access_ttl"`

	// RefreshTTL is the refresh token lifetime. Default: 168h (7 days)
	RefreshTTL time.Duration `yaml:"refresh_ttl" json:"refresh_ttl"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.AccessSecret == "" {
		return fmt.Errorf("access secret is required")
	}
	if c.RefreshSecret == "" {
		return fmt.Errorf("refresh secret is required")
	}
	if c.AccessSecret == c.RefreshSecret {
		return fmt.Errorf("access and refresh secrets must differ")
	}
	return nil
}

// SetDefaults sets default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.AccessTTL == 0 {
		c.AccessTTL = 15 * time.Minute
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = 7 * 24 * time.Hour
	}
}

// Issuer signs token pairs and rotates refresh tokens.
type Issuer struct {
	config Config
	users  user.Store
}

// NewIssuer creates a token issuer backed by the given user store. The
// store is consulted on refresh so revoked or deactivated accounts stop
// refreshing immediately.
func NewIssuer(config Config, users user.Store) (*Issuer, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid token config: %w", err)
	}
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	return &Issuer{config: config, users: users}, nil
}

// Issue creates an access/refresh pair for the user. Both tokens are
// signed concurrently.
func (i *Issuer) Issue(ctx context.Context, u *user.User) (Pair, error) {
	var pair Pair

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := i.sign(u, i.config.AccessSecret, i.config.AccessTTL)
		if err != nil {
			return fmt.Errorf("sign access token: %w", err)
		}
		pair.AccessToken = t
		return nil
	})
	g.Go(func() error {
		t, err := i.sign(u, i.config.RefreshSecret, i.config.RefreshTTL)
		if err != nil {
			return fmt.Errorf("sign refresh token: %w", err)
		}
		pair.RefreshToken = t
		return nil
	})

	if err := g.Wait(); err != nil {
		return Pair{}, err
	}
	return pair, nil
}

// Refresh verifies a refresh token, re-loads the user, and issues a
// fresh pair. Every failure mode collapses into ErrInvalidRefreshToken.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (Pair, *user.User, error) {
	claims, err := i.parse(refreshToken, i.config.RefreshSecret)
	if err != nil {
		return Pair{}, nil, ErrInvalidRefreshToken
	}

	u, err := i.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return Pair{}, nil, ErrInvalidRefreshToken
	}
	if !u.IsActive {
		return Pair{}, nil, ErrInvalidRefreshToken
	}

	pair, err := i.Issue(ctx, u)
	if err != nil {
		return Pair{}, nil, ErrInvalidRefreshToken
	}
	return pair, u, nil
}

// VerifyAccess verifies an access token and returns its claims.
func (i *Issuer) VerifyAccess(tokenString string) (*Claims, error) {
	return i.parse(tokenString, i.config.AccessSecret)
}

func (i *Issuer) sign(u *user.User, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	var tenantID *string
	if u.TenantID != "" {
		t := u.TenantID
		tenantID = &t
	}

	claims := Claims{
		Email:    u.Email,
		Role:     string(u.Role),
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (i *Issuer) parse(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}
