// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package csrf

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/assesshub/platform/internal/apperr"
	"github.com/assesshub/platform/internal/auth"
	"github.com/assesshub/platform/internal/ctxkeys"
)

const (
	// HeaderToken is the response header carrying the issued token and
	// the preferred request header for echoing it back.
	HeaderToken = "X-CSRF-Token"
	// HeaderTokenAlt is the alternate request header some clients send.
	HeaderTokenAlt = "X-XSRF-Token"
	// CookieName is the non-HttpOnly cookie holding the token so client
	// script can read it and echo it in a header (double submit).
	CookieName = "XSRF-TOKEN"
	// BodyField is the form field fallback for the token.
	BodyField = "_csrf"
)

// safeMethods are exempt from validation; they must not change state.
var safeMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodOptions: {},
	http.MethodTrace:   {},
}

// GuardConfig configures the CSRF guard middleware.
type GuardConfig struct {
	Store *Store
	// SkipPaths are public endpoints exempt from validation: health
	// checks, login, registration and the token issuance endpoint itself.
	SkipPaths []string
	// Secure marks the token cookie Secure; set in production (https).
	Secure bool
}

// Guard returns middleware implementing the double-submit defense. It
// runs after the gatekeeper: every authenticated response gets a fresh
// token via header and cookie, and state-changing requests must echo the
// current token back.
func Guard(cfg GuardConfig) echo.MiddlewareFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			_, safe := safeMethods[req.Method]
			_, skipped := skip[req.URL.Path]
			if safe || skipped {
				issue(c, cfg)
				return next(c)
			}

			presented := extractCSRFToken(c)
			if presented == "" {
				return apperr.New(apperr.CsrfMissing, "csrf token missing")
			}

			user := auth.GetUser(req.Context())
			if user == nil {
				return apperr.New(apperr.Unauthenticated, "authentication required")
			}

			valid, err := cfg.Store.Verify(req.Context(), user.ID, presented)
			if apperr.IsKind(err, apperr.SchemaNotReady) {
				// First deployment without migrations: the store just
				// created its own table, so no token can validate yet.
				// Let this one request through rather than failing the
				// first mutation after a fresh install.
				slog.Warn("csrf table created on first use, allowing request",
					"path", req.URL.Path, "user_id", user.ID)
				issue(c, cfg)
				return next(c)
			}
			if err != nil {
				return err
			}
			if !valid {
				return apperr.New(apperr.CsrfInvalidOrExpired, "csrf token invalid or expired")
			}

			issue(c, cfg)
			return next(c)
		}
	}
}

// issue refreshes the user's token and exposes it via the response header
// and a script-readable cookie. Best effort: a failed refresh logs and
// leaves the previous token valid.
func issue(c echo.Context, cfg GuardConfig) {
	user := auth.GetUser(c.Request().Context())
	if user == nil {
		return
	}

	token, err := cfg.Store.Issue(c.Request().Context(), user.ID)
	if err != nil {
		slog.Warn("csrf token issuance failed", "error", err, "user_id", user.ID)
		return
	}

	c.Response().Header().Set(HeaderToken, token)
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.Store.ttl.Seconds()),
		Secure:   cfg.Secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(c.Request().Context(), ctxkeys.CSRFToken{}, token)
	c.SetRequest(c.Request().WithContext(ctx))
}

// TokenFromContext returns the token issued for the current response, for
// handlers that want to include it in their payload.
func TokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(ctxkeys.CSRFToken{}).(string); ok {
		return token
	}
	return ""
}

// extractCSRFToken reads the token from the preferred header, the
// alternate header, the cookie, or the form field, in that order.
func extractCSRFToken(c echo.Context) string {
	if v := c.Request().Header.Get(HeaderToken); v != "" {
		return v
	}
	if v := c.Request().Header.Get(HeaderTokenAlt); v != "" {
		return v
	}
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return c.FormValue(BodyField)
}
