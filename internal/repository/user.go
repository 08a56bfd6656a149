// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/assesshub/platform/internal/models"
)

// CreateUser inserts a new user and returns it with its assigned ID.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	user.IsActive = true

	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (email, password_hash, name, role, college_id, department,
			student_id, phone, avatar_url, country, is_active, created_at, updated_at)
		VALUES (:email, :password_hash, :name, :role, :college_id, :department,
			:student_id, :phone, :avatar_url, :country, :is_active, :created_at, :updated_at)`,
		user)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

// GetUserByID retrieves a user by ID regardless of active state.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetActiveUserByID retrieves a user by ID, requiring the account to be
// active. Deactivated accounts are indistinguishable from missing ones so
// revocation takes effect within one identity-cache TTL window.
func (r *Repository) GetActiveUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ? AND is_active = 1`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// UserExists checks if a user with the given email exists.
func (r *Repository) UserExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM users WHERE email = ?`, email); err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetUserActive activates or deactivates an account.
func (r *Repository) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserProfile updates the mutable profile fields of a user.
func (r *Repository) UpdateUserProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	_, err := r.db.NamedExecContext(ctx, `
		UPDATE users SET name = :name, department = :department, phone = :phone,
			avatar_url = :avatar_url, country = :country, updated_at = :updated_at
		WHERE id = :id`, user)
	return err
}
