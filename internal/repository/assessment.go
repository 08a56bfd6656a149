// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/assesshub/platform/internal/models"
)

// CreateAssessment inserts a new assessment and returns it with its ID.
func (r *Repository) CreateAssessment(ctx context.Context, a *models.Assessment) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO assessments (title, subject, created_by, college_id, created_at, updated_at)
		VALUES (:title, :subject, :created_by, :college_id, :created_at, :updated_at)`, a)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// GetAssessmentByID retrieves a single assessment.
func (r *Repository) GetAssessmentByID(ctx context.Context, id int64) (*models.Assessment, error) {
	var a models.Assessment
	if err := r.db.GetContext(ctx, &a, `SELECT * FROM assessments WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &a, nil
}

// ListAssessmentsByCreator returns the assessments created by a user,
// newest first.
func (r *Repository) ListAssessmentsByCreator(ctx context.Context, userID int64) ([]models.Assessment, error) {
	assessments := []models.Assessment{}
	err := r.db.SelectContext(ctx, &assessments,
		`SELECT * FROM assessments WHERE created_by = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return assessments, nil
}
