package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/melodia-school/melodia-api/internal/models"
)

// InvoiceRepository manages persistence for billing display records.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs an InvoiceRepository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// List returns invoices matching the provided filters, newest due date first.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	base := "FROM invoices i"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.FamilyID != "" {
		conditions = append(conditions, fmt.Sprintf("i.family_id = $%d", len(args)+1))
		args = append(args, filter.FamilyID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("i.due_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("i.due_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT i.id, i.family_id, i.student_id, i.description, i.amount_cents, i.status,
        i.due_date, i.paid_at, i.created_at, i.updated_at
        %s ORDER BY i.due_date %s LIMIT %d OFFSET %d`, base, order, size, offset)

	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// FindByID fetches an invoice by ID.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	const query = `SELECT id, family_id, student_id, description, amount_cents, status, due_date, paid_at, created_at, updated_at
        FROM invoices WHERE id = $1`
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Create inserts a new invoice record.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now
	if invoice.Status == "" {
		invoice.Status = models.InvoiceStatusDue
	}
	const query = `INSERT INTO invoices (id, family_id, student_id, description, amount_cents, status, due_date, paid_at, created_at, updated_at)
        VALUES (:id, :family_id, :student_id, :description, :amount_cents, :status, :due_date, :paid_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// MarkPaid records an external payment against an invoice.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	const query = `UPDATE invoices SET status = $2, paid_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.InvoiceStatusPaid, paidAt); err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	return nil
}

// BalanceByFamily aggregates a family's outstanding and paid totals.
func (r *InvoiceRepository) BalanceByFamily(ctx context.Context, familyID string) (*models.FamilyBalance, error) {
	const query = `SELECT $1::text AS family_id,
        COALESCE(SUM(amount_cents) FILTER (WHERE status IN ('DUE', 'OVERDUE')), 0) AS outstanding_cents,
        COALESCE(SUM(amount_cents) FILTER (WHERE status = 'PAID'), 0) AS paid_cents,
        COUNT(*) FILTER (WHERE status IN ('DUE', 'OVERDUE')) AS open_invoices
        FROM invoices WHERE family_id = $1`
	var balance models.FamilyBalance
	if err := r.db.GetContext(ctx, &balance, query, familyID); err != nil {
		return nil, fmt.Errorf("family balance: %w", err)
	}
	return &balance, nil
}
