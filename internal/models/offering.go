package models

import (
	"time"

	"github.com/lib/pq"
)

// DeliveryMethod describes how an offering's sessions are held.
type DeliveryMethod string

const (
	DeliveryOnSite  DeliveryMethod = "onsite"
	DeliveryVirtual DeliveryMethod = "virtual"
)

// Offering is a scheduled, recurring class instance belonging to a program.
// DaysOfWeek holds weekday indices 0 (Sunday) through 6 (Saturday); StartTime
// and EndTime are local times of day in HH:MM form. The date range is
// inclusive on both ends.
type Offering struct {
	ID             string         `db:"id" json:"id"`
	ProgramID      string         `db:"program_id" json:"program_id"`
	TeacherID      string         `db:"teacher_id" json:"teacher_id"`
	Name           string         `db:"name" json:"name"`
	DaysOfWeek     pq.Int64Array  `db:"days_of_week" json:"days_of_week"`
	StartTime      string         `db:"start_time" json:"start_time"`
	EndTime        string         `db:"end_time" json:"end_time"`
	StartDate      time.Time      `db:"start_date" json:"start_date"`
	StopDate       time.Time      `db:"stop_date" json:"stop_date"`
	DeliveryMethod DeliveryMethod `db:"delivery_method" json:"delivery_method"`
	Location       *string        `db:"location" json:"location,omitempty"`
	MonthlyFee     int64          `db:"monthly_fee_cents" json:"monthly_fee_cents"`
	Capacity       int            `db:"capacity" json:"capacity"`
	Active         bool           `db:"active" json:"active"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// OfferingFilter describes query params for listing offerings.
type OfferingFilter struct {
	ProgramID string
	TeacherID string
	Active    *bool
	// From/To restrict to offerings whose date range overlaps the window.
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// OfferingDetail enriches Offering with program and teacher names.
type OfferingDetail struct {
	Offering
	ProgramName   string `db:"program_name" json:"program_name"`
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
	EnrolledCount int    `db:"enrolled_count" json:"enrolled_count"`
}
