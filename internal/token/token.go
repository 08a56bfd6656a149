// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

// Package token encodes and verifies signed, time-bound identity tokens.
// Verification is pure: it needs no network or store access, so the
// gatekeeper can reject tampered or expired tokens before touching the
// database.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/assesshub/platform/internal/apperr"
)

// DefaultTTL is how long an issued identity token stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// Claims are the verified contents of an identity token.
type Claims struct {
	UserID int64
	jwt.RegisteredClaims
}

// Codec issues and verifies HS256-signed identity tokens.
type Codec struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewCodec creates a Codec. The secret must be non-empty; ttl of zero
// falls back to DefaultTTL.
func NewCodec(secret []byte, ttl time.Duration, issuer string) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: secret, ttl: ttl, issuer: issuer}, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a new identity token for the given user. No side effects;
// tokens are never persisted server-side.
func (c *Codec) Issue(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        uuid.NewString(),
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and verifies a token, distinguishing expiry from all
// other invalidity because callers react differently to the two.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var registered jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &registered, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.TokenExpired, "token expired", err)
		}
		return nil, apperr.Wrap(apperr.TokenInvalid, "invalid token", err)
	}

	userID, err := strconv.ParseInt(registered.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, apperr.New(apperr.TokenInvalid, "invalid token subject")
	}

	return &Claims{UserID: userID, RegisteredClaims: registered}, nil
}
