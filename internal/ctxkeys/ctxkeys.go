// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

// Package ctxkeys defines typed context keys used across packages.
package ctxkeys

// User is the context key for the authenticated user.
type User struct{}

// CSRFToken is the context key for the CSRF token issued for the current
// response.
type CSRFToken struct{}
