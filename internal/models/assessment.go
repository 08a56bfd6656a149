// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// Assessment is the representative guarded business resource. The wider
// platform hangs questions, submissions and analytics off it; this layer
// only needs something real behind the CSRF-protected mutation path.
type Assessment struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Subject   string    `db:"subject" json:"subject"`
	CreatedBy int64     `db:"created_by" json:"created_by"`
	CollegeID *int64    `db:"college_id" json:"college_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
