// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assesshub/platform/internal/apperr"
	"github.com/assesshub/platform/internal/auth"
	"github.com/assesshub/platform/internal/identity"
	"github.com/assesshub/platform/internal/models"
	"github.com/assesshub/platform/internal/repository"
	"github.com/assesshub/platform/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// stubStore is an IdentityStore with canned responses, counting lookups
// so tests can tell cache hits from store round trips.
type stubStore struct {
	user  *models.User
	err   error
	calls int
}

func (s *stubStore) GetActiveUserByID(_ context.Context, _ int64) (*models.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(testSecret, time.Hour, "assesshub-test")
	require.NoError(t, err)
	return codec
}

// run sends one request through Authenticate and reports the middleware
// error plus the identity the handler observed, if any.
func run(t *testing.T, mw echo.MiddlewareFunc, mutate func(*http.Request)) (error, *models.User) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *models.User
	handler := mw(func(c echo.Context) error {
		seen = auth.GetUser(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	return handler(c), seen
}

func bearer(signed string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+signed)
	}
}

func TestAuthenticate_MissingCredential(t *testing.T) {
	mw := Authenticate(newTestCodec(t), identity.NewCache(time.Minute), &stubStore{})

	err, seen := run(t, mw, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.CredentialMissing, apperr.KindOf(err))
	assert.Nil(t, seen)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	store := &stubStore{}
	mw := Authenticate(newTestCodec(t), identity.NewCache(time.Minute), store)

	err, _ := run(t, mw, bearer("not-a-real-token"))
	require.Error(t, err)
	assert.Equal(t, apperr.TokenInvalid, apperr.KindOf(err))
	assert.Zero(t, store.calls, "invalid tokens never reach the store")
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	store := &stubStore{}
	mw := Authenticate(newTestCodec(t), identity.NewCache(time.Minute), store)

	// Signed with the right secret and issuer, but already past expiry.
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(7, 10),
		Issuer:    "assesshub-test",
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	mwErr, _ := run(t, mw, bearer(signed))
	require.Error(t, mwErr)
	assert.Equal(t, apperr.TokenExpired, apperr.KindOf(mwErr))
	assert.Zero(t, store.calls)
}

func TestAuthenticate_ResolvesAndCaches(t *testing.T) {
	codec := newTestCodec(t)
	cache := identity.NewCache(time.Minute)
	user := &models.User{ID: 7, Email: "u@example.com", Role: models.RoleStudent, IsActive: true}
	store := &stubStore{user: user}
	mw := Authenticate(codec, cache, store)

	signed, err := codec.Issue(user.ID)
	require.NoError(t, err)

	mwErr, seen := run(t, mw, bearer(signed))
	require.NoError(t, mwErr)
	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.ID)
	assert.Equal(t, 1, store.calls)

	// Second request inside the TTL is served from the cache; even a
	// failing store is not consulted.
	store.err = errors.New("db down")
	mwErr, seen = run(t, mw, bearer(signed))
	require.NoError(t, mwErr)
	require.NotNil(t, seen)
	assert.Equal(t, 1, store.calls)
}

func TestAuthenticate_UnknownIdentity(t *testing.T) {
	codec := newTestCodec(t)
	store := &stubStore{err: repository.ErrNotFound}
	mw := Authenticate(codec, identity.NewCache(time.Minute), store)

	signed, err := codec.Issue(99)
	require.NoError(t, err)

	mwErr, seen := run(t, mw, bearer(signed))
	require.Error(t, mwErr)
	assert.Equal(t, apperr.IdentityNotFound, apperr.KindOf(mwErr))
	assert.Nil(t, seen)
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	codec := newTestCodec(t)
	store := &stubStore{err: errors.New("connection reset")}
	mw := Authenticate(codec, identity.NewCache(time.Minute), store)

	signed, err := codec.Issue(7)
	require.NoError(t, err)

	mwErr, _ := run(t, mw, bearer(signed))
	require.Error(t, mwErr)
	assert.Equal(t, apperr.InternalError, apperr.KindOf(mwErr))
}

func TestAuthenticate_CookieFallback(t *testing.T) {
	codec := newTestCodec(t)
	user := &models.User{ID: 3, IsActive: true}
	mw := Authenticate(codec, identity.NewCache(time.Minute), &stubStore{user: user})

	signed, err := codec.Issue(user.ID)
	require.NoError(t, err)

	mwErr, seen := run(t, mw, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: signed})
	})
	require.NoError(t, mwErr)
	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.ID)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name    string
		user    *models.User
		wantErr bool
		want    apperr.Kind
	}{
		{"no identity", nil, true, apperr.Unauthenticated},
		{"wrong role", &models.User{ID: 1, Role: models.RoleStudent}, true, apperr.InsufficientPermission},
		{"matching role", &models.User{ID: 2, Role: models.RoleTeacher}, false, 0},
		{"super admin bypass", &models.User{ID: 3, Role: models.RoleSuperAdmin}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/assessments", nil)
			if tt.user != nil {
				req = req.WithContext(auth.SetUser(req.Context(), tt.user))
			}
			c := e.NewContext(req, httptest.NewRecorder())

			handler := RequireRole(models.RoleTeacher, models.RoleAdmin)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			err := handler(c)

			if !tt.wantErr {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.want, apperr.KindOf(err))
			}
		})
	}
}
