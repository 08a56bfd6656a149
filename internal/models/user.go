// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// Roles known to the platform. SuperAdmin bypasses role and college
// scoping everywhere.
const (
	RoleStudent    = "student"
	RoleTeacher    = "teacher"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// User is the authoritative identity record. The same shape is cached by
// the identity cache and attached to authenticated requests.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         string    `db:"role" json:"role"`
	CollegeID    *int64    `db:"college_id" json:"college_id"`
	Department   string    `db:"department" json:"department"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Phone        string    `db:"phone" json:"phone"`
	AvatarURL    string    `db:"avatar_url" json:"avatar_url"`
	Country      string    `db:"country" json:"country"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HasRole reports whether the user's role is in the given set. SuperAdmin
// always passes.
func (u *User) HasRole(roles ...string) bool {
	if u.Role == RoleSuperAdmin {
		return true
	}
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// CanAccessCollege reports whether the user may touch data scoped to the
// given college. SuperAdmin bypasses tenant scoping.
func (u *User) CanAccessCollege(collegeID int64) bool {
	if u.Role == RoleSuperAdmin {
		return true
	}
	return u.CollegeID != nil && *u.CollegeID == collegeID
}
