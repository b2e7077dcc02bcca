package models

import "time"

// InvoiceStatus represents the billing state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDue     InvoiceStatus = "DUE"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
	InvoiceStatusVoid    InvoiceStatus = "VOID"
)

// Invoice is a display-only billing record for a family. Payment collection
// happens in an external system; this service only records and shows amounts.
type Invoice struct {
	ID          string        `db:"id" json:"id"`
	FamilyID    string        `db:"family_id" json:"family_id"`
	StudentID   *string       `db:"student_id" json:"student_id,omitempty"`
	Description string        `db:"description" json:"description"`
	AmountCents int64         `db:"amount_cents" json:"amount_cents"`
	Status      InvoiceStatus `db:"status" json:"status"`
	DueDate     time.Time     `db:"due_date" json:"due_date"`
	PaidAt      *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// InvoiceFilter provides filters for listing invoices.
type InvoiceFilter struct {
	FamilyID  string
	Status    InvoiceStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// FamilyBalance summarises a family's outstanding amounts.
type FamilyBalance struct {
	FamilyID         string `db:"family_id" json:"family_id"`
	OutstandingCents int64  `db:"outstanding_cents" json:"outstanding_cents"`
	PaidCents        int64  `db:"paid_cents" json:"paid_cents"`
	OpenInvoices     int    `db:"open_invoices" json:"open_invoices"`
}
