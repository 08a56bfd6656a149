// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

// Package handlers contains the HTTP handlers for the platform API.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/assesshub/platform/internal/csrf"
	"github.com/assesshub/platform/internal/repository"
	"github.com/assesshub/platform/internal/token"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	repo         *repository.Repository
	codec        *token.Codec
	csrfStore    *csrf.Store
	secureCookie bool
}

// New creates a new Handlers instance. secureCookie marks auth cookies
// Secure; enable it when serving over https.
func New(repo *repository.Repository, codec *token.Codec, csrfStore *csrf.Store, secureCookie bool) *Handlers {
	return &Handlers{
		repo:         repo,
		codec:        codec,
		csrfStore:    csrfStore,
		secureCookie: secureCookie,
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status": "ok",
	})
}
