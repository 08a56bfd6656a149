// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/assesshub/platform/internal/apperr"
	"github.com/assesshub/platform/internal/config"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Server.MaxBodySize)))
}

// requestLogger returns middleware that logs requests using slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				slog.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
			} else {
				slog.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			}

			return nil
		},
	})
}

// errorHandler renders every failure as the standard envelope
// {success:false, message, code}. Authentication and CSRF rejections are
// decided by their middleware and arrive here as typed errors; they never
// reach business handlers.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal server error"
	code := apperr.InternalError.String()

	var appErr *apperr.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		status = statusForKind(appErr.Kind)
		message = appErr.Message
		code = appErr.Kind.String()
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(httpErr.Code)
		}
		code = ""
	default:
		slog.Error("unhandled error", "error", err, "path", c.Request().URL.Path)
	}

	payload := echo.Map{
		"success": false,
		"message": message,
	}
	if code != "" {
		payload["code"] = code
	}

	if jsonErr := c.JSON(status, payload); jsonErr != nil {
		slog.Error("failed to write error response", "error", jsonErr)
	}
}

// statusForKind maps the closed error taxonomy onto HTTP statuses.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.CredentialMissing, apperr.TokenExpired, apperr.TokenInvalid,
		apperr.IdentityNotFound, apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.InsufficientPermission, apperr.CsrfMissing, apperr.CsrfInvalidOrExpired:
		return http.StatusForbidden
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
