package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment captures a student's registration to an offering. MonthlyFee is
// a snapshot of the offering fee at enrollment time (display only; no payment
// processing happens here).
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	OfferingID string           `db:"offering_id" json:"offering_id"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	EndedAt    *time.Time       `db:"ended_at" json:"ended_at,omitempty"`
	MonthlyFee int64            `db:"monthly_fee_cents" json:"monthly_fee_cents"`
	Status     EnrollmentStatus `db:"status" json:"status"`
}

// EnrollmentDetail enriches Enrollment with student and offering info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	OfferingName string `db:"offering_name" json:"offering_name"`
	ProgramName  string `db:"program_name" json:"program_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID  string
	OfferingID string
	FamilyID   string
	Status     EnrollmentStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
