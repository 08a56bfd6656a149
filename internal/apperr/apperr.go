// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

// Package apperr defines the closed set of error kinds used by the
// authentication and integrity layer. Callers branch on Kind instead of
// matching message strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a failure class.
type Kind int

const (
	// InternalError covers unexpected failures (store errors, IO).
	InternalError Kind = iota
	// CredentialMissing means no bearer token was presented.
	CredentialMissing
	// TokenExpired means the identity token's expiry has passed.
	TokenExpired
	// TokenInvalid means the identity token is malformed or its signature
	// does not verify.
	TokenInvalid
	// IdentityNotFound means the token was valid but no active user backs it.
	IdentityNotFound
	// InsufficientPermission means the identity lacks a required role.
	InsufficientPermission
	// Unauthenticated means an operation requiring an identity had none.
	Unauthenticated
	// CsrfMissing means a state-changing request carried no CSRF token.
	CsrfMissing
	// CsrfInvalidOrExpired means the presented CSRF token failed validation.
	CsrfInvalidOrExpired
	// SchemaNotReady means a backing table does not exist yet. It is
	// recovered locally and never surfaces to callers.
	SchemaNotReady
	// RateLimited is surfaced as data on the client, never thrown.
	RateLimited
	// VerificationRequired is surfaced as data on the client, never thrown.
	VerificationRequired
	// Timeout means the call's time budget elapsed.
	Timeout
	// Cancelled means the caller aborted the call.
	Cancelled
	// NetworkTransient means a network-level failure that may succeed on retry.
	NetworkTransient
	// NotFound means a requested record does not exist.
	NotFound
	// Validation means the request payload was rejected.
	Validation
)

// String returns the kind's stable name.
func (k Kind) String() string {
	switch k {
	case CredentialMissing:
		return "credential_missing"
	case TokenExpired:
		return "token_expired"
	case TokenInvalid:
		return "token_invalid"
	case IdentityNotFound:
		return "identity_not_found"
	case InsufficientPermission:
		return "insufficient_permission"
	case Unauthenticated:
		return "unauthenticated"
	case CsrfMissing:
		return "csrf_missing"
	case CsrfInvalidOrExpired:
		return "csrf_invalid_or_expired"
	case SchemaNotReady:
		return "schema_not_ready"
	case RateLimited:
		return "rate_limited"
	case VerificationRequired:
		return "verification_required"
	case Timeout:
		return "timeout"
	case Cancelled:
		return "cancelled"
	case NetworkTransient:
		return "network_transient"
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	default:
		return "internal_error"
	}
}

// Error is a failure with a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	err     error
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that records an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Message + ": " + e.err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// Is makes errors.Is match on Kind so sentinel comparisons work across
// wrapping.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the kind from err, defaulting to InternalError for
// errors produced outside this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
