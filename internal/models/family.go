package models

import "time"

// Family groups students under one household account. Status is optional: a
// family created before lifecycle tracking has no status and is treated as
// active.
type Family struct {
	ID                 string        `db:"id" json:"id"`
	Name               string        `db:"name" json:"name"`
	PrimaryContact     string        `db:"primary_contact" json:"primary_contact"`
	Email              string        `db:"email" json:"email"`
	Phone              *string       `db:"phone" json:"phone,omitempty"`
	Status             *FamilyStatus `db:"status" json:"status,omitempty"`
	StatusChangedAt    *time.Time    `db:"status_changed_at" json:"status_changed_at,omitempty"`
	StatusChangedBy    *string       `db:"status_changed_by" json:"status_changed_by,omitempty"`
	StatusChangeReason *string       `db:"status_change_reason" json:"status_change_reason,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// FamilyFilter captures filtering criteria for listing families.
type FamilyFilter struct {
	Search    string
	Status    FamilyStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// FamilyDetail enriches Family with dependent counts for list views.
type FamilyDetail struct {
	Family
	StudentCount int `db:"student_count" json:"student_count"`
}
