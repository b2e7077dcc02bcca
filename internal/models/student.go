package models

import "time"

// Student represents a learner registered at the school. Status fields are
// mutated only through the status change orchestrator; edits elsewhere do not
// append history.
type Student struct {
	ID                 string        `db:"id" json:"id"`
	FamilyID           *string       `db:"family_id" json:"family_id,omitempty"`
	FullName           string        `db:"full_name" json:"full_name"`
	BirthDate          *time.Time    `db:"birth_date" json:"birth_date,omitempty"`
	Instrument         *string       `db:"instrument" json:"instrument,omitempty"`
	Notes              *string       `db:"notes" json:"notes,omitempty"`
	Status             StudentStatus `db:"status" json:"status"`
	StatusChangedAt    *time.Time    `db:"status_changed_at" json:"status_changed_at,omitempty"`
	StatusChangedBy    *string       `db:"status_changed_by" json:"status_changed_by,omitempty"`
	StatusChangeReason *string       `db:"status_change_reason" json:"status_change_reason,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	FamilyID  string
	Status    StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains student information with family context.
type StudentDetail struct {
	Student
	FamilyName        *string `db:"family_name" json:"family_name,omitempty"`
	ActiveEnrollments int     `db:"active_enrollments" json:"active_enrollments"`
}
