package models

import "time"

// FallbackLocation is displayed when an on-site offering has no location set.
const FallbackLocation = "On Site"

// VirtualLocation is displayed for virtual offerings.
const VirtualLocation = "Virtual"

// CalendarEventProps reference the source records behind a derived event.
type CalendarEventProps struct {
	OfferingID string `json:"offering_id"`
	ProgramID  string `json:"program_id"`
	TeacherID  string `json:"teacher_id"`
	Location   string `json:"location"`
	Virtual    bool   `json:"virtual"`
}

// CalendarEvent is one concrete occurrence derived from an offering's weekly
// recurrence. It is never persisted: the ID is a deterministic composite of
// the offering ID and the occurrence date, so re-generation is idempotent.
type CalendarEvent struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Start         time.Time          `json:"start"`
	End           time.Time          `json:"end"`
	ExtendedProps CalendarEventProps `json:"extended_props"`
}
