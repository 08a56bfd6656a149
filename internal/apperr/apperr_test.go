// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatchingSurvivesWrapping(t *testing.T) {
	inner := New(TokenExpired, "token expired")
	wrapped := fmt.Errorf("verify: %w", inner)

	assert.Equal(t, TokenExpired, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, TokenExpired))
	assert.False(t, IsKind(wrapped, TokenInvalid))
	assert.True(t, errors.Is(wrapped, New(TokenExpired, "different message")))
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, InternalError, KindOf(errors.New("plain")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(InternalError, "save failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "save failed: disk full", err.Error())
}

func TestKindNamesAreStable(t *testing.T) {
	// These names cross the wire in error envelopes; clients match on
	// them, so they must never change.
	assert.Equal(t, "csrf_missing", CsrfMissing.String())
	assert.Equal(t, "csrf_invalid_or_expired", CsrfInvalidOrExpired.String())
	assert.Equal(t, "identity_not_found", IdentityNotFound.String())
	assert.Equal(t, "token_expired", TokenExpired.String())
	assert.Equal(t, "internal_error", InternalError.String())
}
