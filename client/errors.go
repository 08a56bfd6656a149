// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package client

import (
	"github.com/assesshub/platform/internal/apperr"
)

// Error-kind predicates so callers can branch without reaching into the
// internal error types.

// IsUnauthenticated reports a 401: credentials were cleared and the
// caller must re-authenticate.
func IsUnauthenticated(err error) bool {
	return apperr.IsKind(err, apperr.Unauthenticated)
}

// IsPermissionDenied reports a non-CSRF 403.
func IsPermissionDenied(err error) bool {
	return apperr.IsKind(err, apperr.InsufficientPermission)
}

// IsCSRFFailure reports a CSRF rejection that survived the single
// refresh-and-replay attempt.
func IsCSRFFailure(err error) bool {
	return apperr.IsKind(err, apperr.CsrfInvalidOrExpired) ||
		apperr.IsKind(err, apperr.CsrfMissing)
}

// IsTimeout reports that the call's cancellation budget fired.
func IsTimeout(err error) bool {
	return apperr.IsKind(err, apperr.Timeout)
}

// IsCancelled reports that the caller aborted the call.
func IsCancelled(err error) bool {
	return apperr.IsKind(err, apperr.Cancelled)
}

// IsNetworkTransient reports a network-level failure that exhausted its
// retries.
func IsNetworkTransient(err error) bool {
	return apperr.IsKind(err, apperr.NetworkTransient)
}

// IsNotFound reports a 404.
func IsNotFound(err error) bool {
	return apperr.IsKind(err, apperr.NotFound)
}

// IsValidation reports a 400/422.
func IsValidation(err error) bool {
	return apperr.IsKind(err, apperr.Validation)
}
