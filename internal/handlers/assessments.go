// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/assesshub/platform/internal/apperr"
	"github.com/assesshub/platform/internal/auth"
	"github.com/assesshub/platform/internal/models"
)

// CreateAssessmentRequest is the request body for creating an assessment.
type CreateAssessmentRequest struct {
	Title   string `json:"title"`
	Subject string `json:"subject"`
}

// CreateAssessment creates an assessment owned by the caller.
func (h *Handlers) CreateAssessment(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())
	if user == nil {
		return apperr.New(apperr.Unauthenticated, "authentication required")
	}

	var req CreateAssessmentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.Validation, "invalid request body")
	}
	if req.Title == "" {
		return apperr.New(apperr.Validation, "title is required")
	}

	assessment := &models.Assessment{
		Title:     req.Title,
		Subject:   req.Subject,
		CreatedBy: user.ID,
		CollegeID: user.CollegeID,
	}
	if err := h.repo.CreateAssessment(c.Request().Context(), assessment); err != nil {
		return apperr.Wrap(apperr.InternalError, "create assessment", err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success":    true,
		"assessment": assessment,
	})
}

// ListAssessments returns the caller's assessments.
func (h *Handlers) ListAssessments(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())
	if user == nil {
		return apperr.New(apperr.Unauthenticated, "authentication required")
	}

	assessments, err := h.repo.ListAssessmentsByCreator(c.Request().Context(), user.ID)
	if err != nil {
		return apperr.Wrap(apperr.InternalError, "list assessments", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"assessments": assessments,
	})
}
