// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

// Package middleware contains the request gatekeeper and role checks.
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/assesshub/platform/internal/apperr"
	"github.com/assesshub/platform/internal/auth"
	"github.com/assesshub/platform/internal/identity"
	"github.com/assesshub/platform/internal/models"
	"github.com/assesshub/platform/internal/repository"
	"github.com/assesshub/platform/internal/token"
)

// AuthCookieName is the fallback cookie for the bearer token, used by
// transport contexts that cannot set an Authorization header.
const AuthCookieName = "authToken"

// IdentityStore fetches the authoritative user record on cache misses.
type IdentityStore interface {
	GetActiveUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Authenticate composes token verification, the identity cache and the
// identity store into an authentication decision, attaching the resolved
// identity to the request context.
//
// Even a cryptographically valid token is rejected when the backing
// account is missing or deactivated, so revocation takes effect within one
// cache TTL window.
func Authenticate(codec *token.Codec, cache *identity.Cache, store IdentityStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := extractToken(c)
			if !ok {
				return apperr.New(apperr.CredentialMissing, "authentication required")
			}

			claims, err := codec.Verify(raw)
			if err != nil {
				return err
			}

			user, hit := cache.Get(claims.UserID)
			if !hit {
				user, err = store.GetActiveUserByID(c.Request().Context(), claims.UserID)
				if errors.Is(err, repository.ErrNotFound) {
					return apperr.New(apperr.IdentityNotFound, "account not found or deactivated")
				}
				if err != nil {
					return apperr.Wrap(apperr.InternalError, "identity lookup failed", err)
				}
				cache.Set(claims.UserID, user)
			}

			ctx := auth.SetUser(c.Request().Context(), user)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireRole rejects requests whose identity lacks all of the given
// roles. The super admin role bypasses the check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := auth.GetUser(c.Request().Context())
			if user == nil {
				return apperr.New(apperr.Unauthenticated, "authentication required")
			}
			if !user.HasRole(roles...) {
				return apperr.New(apperr.InsufficientPermission, "insufficient permission")
			}
			return next(c)
		}
	}
}

// extractToken pulls the bearer token from the Authorization header,
// falling back to the authToken cookie.
func extractToken(c echo.Context) (string, bool) {
	const bearer = "Bearer "
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, bearer) && len(header) > len(bearer) {
		return header[len(bearer):], true
	}

	cookie, err := c.Cookie(AuthCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	return "", false
}
