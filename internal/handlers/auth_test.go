// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package handlers_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assesshub/platform/internal/apperr"
	"github.com/assesshub/platform/internal/csrf"
	"github.com/assesshub/platform/internal/handlers"
	"github.com/assesshub/platform/internal/middleware"
	"github.com/assesshub/platform/internal/models"
	"github.com/assesshub/platform/internal/repository"
	"github.com/assesshub/platform/internal/testutil"
	"github.com/assesshub/platform/internal/token"
)

func newHandlers(t *testing.T) (*handlers.Handlers, *repository.Repository) {
	t.Helper()
	db, repo := testutil.NewTestDB(t)

	codec, err := token.NewCodec([]byte("handlers-test-secret-0123456789a"), time.Hour, "assesshub")
	require.NoError(t, err)
	store := csrf.NewStore(db, []byte("handlers-test-csrf-secret-01234x"), time.Hour)

	return handlers.New(repo, codec, store, false), repo
}

func TestRegister(t *testing.T) {
	h, repo := newHandlers(t)
	e := echo.New()

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"new@example.com","password":"longenough","name":"New User","role":"teacher"}`))
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		User    struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, "teacher", body.User.Role)

	// Password hashes never leak into responses.
	assert.NotContains(t, rec.Body.String(), "password")

	// The session cookie is set HttpOnly.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.AuthCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	stored, err := repo.GetUserByEmail(c.Request().Context(), "new@example.com")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
}

func TestRegister_PrivilegedRoleDowngraded(t *testing.T) {
	h, repo := newHandlers(t)
	e := echo.New()

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"sneaky@example.com","password":"longenough","role":"super_admin"}`))
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	stored, err := repo.GetUserByEmail(c.Request().Context(), "sneaky@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, stored.Role)
}

func TestRegister_Validation(t *testing.T) {
	h, _ := newHandlers(t)
	e := echo.New()

	tests := []struct {
		name string
		body string
	}{
		{"missing email", `{"password":"longenough"}`},
		{"missing password", `{"email":"a@example.com"}`},
		{"short password", `{"email":"a@example.com","password":"short"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testutil.NewEchoContext(e, http.MethodPost, "/api/auth/register",
				strings.NewReader(tt.body))
			err := h.Register(c)
			require.Error(t, err)
			assert.Equal(t, apperr.Validation, apperr.KindOf(err))
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h, repo := newHandlers(t)
	testutil.NewTestUser(t, repo, "taken@example.com", models.RoleStudent)
	e := echo.New()

	c, _ := testutil.NewEchoContext(e, http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"taken@example.com","password":"longenough"}`))
	err := h.Register(c)
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestLogin(t *testing.T) {
	h, repo := newHandlers(t)
	testutil.NewTestUser(t, repo, "login@example.com", models.RoleStudent)
	e := echo.New()

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"login@example.com","password":"`+testutil.Password+`"}`))
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)
}

func TestLogin_WrongPassword(t *testing.T) {
	h, repo := newHandlers(t)
	testutil.NewTestUser(t, repo, "wrongpw@example.com", models.RoleStudent)
	e := echo.New()

	c, _ := testutil.NewEchoContext(e, http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"wrongpw@example.com","password":"not-the-password"}`))
	err := h.Login(c)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestLogin_UnknownEmail(t *testing.T) {
	h, _ := newHandlers(t)
	e := echo.New()

	c, _ := testutil.NewEchoContext(e, http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"ghost@example.com","password":"whatever1"}`))
	err := h.Login(c)
	require.Error(t, err)
	// Same failure as a wrong password, so the endpoint does not leak
	// which emails are registered.
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	h, repo := newHandlers(t)
	user := testutil.NewTestUser(t, repo, "inactive@example.com", models.RoleStudent)
	e := echo.New()

	c, _ := testutil.NewEchoContext(e, http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"inactive@example.com","password":"`+testutil.Password+`"}`))
	require.NoError(t, repo.SetUserActive(c.Request().Context(), user.ID, false))

	err := h.Login(c)
	require.Error(t, err)
	assert.Equal(t, apperr.IdentityNotFound, apperr.KindOf(err))
}

func TestLogout_ClearsCookie(t *testing.T) {
	h, _ := newHandlers(t)
	e := echo.New()

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/api/auth/logout", strings.NewReader(""))
	require.NoError(t, h.Logout(c))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.AuthCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}
