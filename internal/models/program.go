package models

import "time"

// Program is a course of study offered by the school (piano, strings, voice).
type Program struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	MinAge      *int      `db:"min_age" json:"min_age,omitempty"`
	MaxAge      *int      `db:"max_age" json:"max_age,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramFilter describes query params for listing programs.
type ProgramFilter struct {
	Search    string
	Category  string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
