// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/assesshub/platform/internal/apperr"
	"github.com/assesshub/platform/internal/auth"
	"github.com/assesshub/platform/internal/csrf"
	"github.com/assesshub/platform/internal/middleware"
	"github.com/assesshub/platform/internal/models"
	"github.com/assesshub/platform/internal/repository"
)

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	CollegeID  *int64 `json:"college_id"`
	Department string `json:"department"`
	StudentID  string `json:"student_id"`
}

// Register creates a new account and issues an identity token.
func (h *Handlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.Validation, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return apperr.New(apperr.Validation, "email and password are required")
	}
	if len(req.Password) < 8 {
		return apperr.New(apperr.Validation, "password must be at least 8 characters")
	}

	exists, err := h.repo.UserExists(c.Request().Context(), req.Email)
	if err != nil {
		return apperr.Wrap(apperr.InternalError, "check existing account", err)
	}
	if exists {
		return apperr.New(apperr.Validation, "email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(apperr.InternalError, "hash password", err)
	}

	role := req.Role
	// Privileged roles are never self-assigned at registration.
	if role != models.RoleStudent && role != models.RoleTeacher {
		role = models.RoleStudent
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         role,
		CollegeID:    req.CollegeID,
		Department:   req.Department,
		StudentID:    req.StudentID,
	}
	if err := h.repo.CreateUser(c.Request().Context(), user); err != nil {
		slog.Error("failed to create user", "error", err, "email", req.Email)
		return apperr.Wrap(apperr.InternalError, "create account", err)
	}

	return h.issueSession(c, http.StatusCreated, user)
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and issues an identity token.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.Validation, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return apperr.New(apperr.Validation, "email and password are required")
	}

	user, err := h.repo.GetUserByEmail(c.Request().Context(), req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.Unauthenticated, "invalid email or password")
	}
	if err != nil {
		return apperr.Wrap(apperr.InternalError, "lookup account", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return apperr.New(apperr.Unauthenticated, "invalid email or password")
	}
	if !user.IsActive {
		return apperr.New(apperr.IdentityNotFound, "account deactivated")
	}

	return h.issueSession(c, http.StatusOK, user)
}

// issueSession signs an identity token, sets the fallback cookie and
// returns the token with the user profile.
func (h *Handlers) issueSession(c echo.Context, status int, user *models.User) error {
	signed, err := h.codec.Issue(user.ID)
	if err != nil {
		return apperr.Wrap(apperr.InternalError, "issue token", err)
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(h.codec.TTL().Seconds()),
		Secure:   h.secureCookie,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	return c.JSON(status, echo.Map{
		"success": true,
		"token":   signed,
		"user":    user,
	})
}

// Logout clears the fallback auth cookie. The bearer token itself stays
// valid until expiry; the client discards its copy.
func (h *Handlers) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Me returns the authenticated user's profile.
func (h *Handlers) Me(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())
	if user == nil {
		return apperr.New(apperr.Unauthenticated, "authentication required")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user":    user,
	})
}

// CSRFToken returns the current CSRF token for the authenticated user.
// The guard has usually already issued one for this response; fall back
// to the store when it has not.
func (h *Handlers) CSRFToken(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())
	if user == nil {
		return apperr.New(apperr.Unauthenticated, "authentication required")
	}

	tok := csrf.TokenFromContext(c.Request().Context())
	if tok == "" {
		var err error
		tok, err = h.csrfStore.Issue(c.Request().Context(), user.ID)
		if err != nil {
			return err
		}
		c.Response().Header().Set(csrf.HeaderToken, tok)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"csrfToken": tok,
	})
}
