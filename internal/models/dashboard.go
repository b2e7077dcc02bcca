package models

import "time"

// DashboardSummary is the admin landing-page aggregate: the student lifecycle
// breakdown plus headline counts across the school.
type DashboardSummary struct {
	TrialStudents     int `db:"trial_students" json:"trial_students"`
	WaitlistStudents  int `db:"waitlist_students" json:"waitlist_students"`
	ActiveStudents    int `db:"active_students" json:"active_students"`
	OnHoldStudents    int `db:"on_hold_students" json:"on_hold_students"`
	InactiveStudents  int `db:"inactive_students" json:"inactive_students"`
	WithdrawnStudents int `db:"withdrawn_students" json:"withdrawn_students"`
	GraduatedStudents int `db:"graduated_students" json:"graduated_students"`

	ActiveFamilies    int   `db:"active_families" json:"active_families"`
	ActiveTeachers    int   `db:"active_teachers" json:"active_teachers"`
	ActiveOfferings   int   `db:"active_offerings" json:"active_offerings"`
	ActiveEnrollments int   `db:"active_enrollments" json:"active_enrollments"`
	OutstandingCents  int64 `db:"outstanding_cents" json:"outstanding_cents"`

	GeneratedAt time.Time `db:"-" json:"generated_at"`
}
