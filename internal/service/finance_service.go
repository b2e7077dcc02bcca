package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/melodia-school/melodia-api/internal/models"
	appErrors "github.com/melodia-school/melodia-api/pkg/errors"
	"github.com/melodia-school/melodia-api/pkg/export"
)

type invoiceRepository interface {
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error)
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
	BalanceByFamily(ctx context.Context, familyID string) (*models.FamilyBalance, error)
}

type financeFamilyReader interface {
	FindByID(ctx context.Context, id string) (*models.FamilyDetail, error)
}

type financeCSVRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type financePDFRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// StatementFormat selects the rendering for a family statement export.
type StatementFormat string

const (
	StatementFormatCSV StatementFormat = "csv"
	StatementFormatPDF StatementFormat = "pdf"
)

// CreateInvoiceRequest records a display-only billing line for a family.
type CreateInvoiceRequest struct {
	FamilyID    string    `json:"family_id" validate:"required"`
	StudentID   *string   `json:"student_id"`
	Description string    `json:"description" validate:"required"`
	AmountCents int64     `json:"amount_cents" validate:"gt=0"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// Statement is a rendered family statement export.
type Statement struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// FinanceService exposes the billing display surface: invoice listings,
// family balances, and downloadable statements. Payment collection is
// external; nothing here moves money.
type FinanceService struct {
	invoices  invoiceRepository
	families  financeFamilyReader
	csv       financeCSVRenderer
	pdf       financePDFRenderer
	currency  string
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFinanceService constructs the finance service.
func NewFinanceService(invoices invoiceRepository, families financeFamilyReader, currency string, validate *validator.Validate, logger *zap.Logger) *FinanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "USD"
	}
	return &FinanceService{
		invoices:  invoices,
		families:  families,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		currency:  currency,
		validator: validate,
		logger:    logger,
	}
}

// List returns invoices and pagination metadata.
func (s *FinanceService) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, *models.Pagination, error) {
	invoices, total, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return invoices, pagination, nil
}

// Get returns a single invoice.
func (s *FinanceService) Get(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	return invoice, nil
}

// Create records a new invoice line.
func (s *FinanceService) Create(ctx context.Context, req CreateInvoiceRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}
	if _, err := s.families.FindByID(ctx, req.FamilyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
	}
	invoice := &models.Invoice{
		FamilyID:    req.FamilyID,
		StudentID:   req.StudentID,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Status:      models.InvoiceStatusDue,
		DueDate:     req.DueDate,
	}
	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}
	return invoice, nil
}

// MarkPaid records an externally collected payment against an invoice.
func (s *FinanceService) MarkPaid(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice is already paid")
	}
	if invoice.Status == models.InvoiceStatusVoid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice is void")
	}
	paidAt := time.Now().UTC()
	if err := s.invoices.MarkPaid(ctx, id, paidAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark invoice paid")
	}
	invoice.Status = models.InvoiceStatusPaid
	invoice.PaidAt = &paidAt
	return invoice, nil
}

// Balance summarises a family's outstanding and paid totals.
func (s *FinanceService) Balance(ctx context.Context, familyID string) (*models.FamilyBalance, error) {
	balance, err := s.invoices.BalanceByFamily(ctx, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family balance")
	}
	return balance, nil
}

// Statement renders a family's invoice history as a downloadable CSV or PDF
// with a closing total row.
func (s *FinanceService) Statement(ctx context.Context, familyID string, format StatementFormat) (*Statement, error) {
	family, err := s.families.FindByID(ctx, familyID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
	}

	invoices, _, err := s.invoices.List(ctx, models.InvoiceFilter{FamilyID: familyID, PageSize: 100, SortOrder: "ASC"})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}

	dataset := s.buildStatementDataset(invoices)
	title := fmt.Sprintf("Statement - %s", family.Name)
	date := time.Now().UTC().Format("2006-01-02")

	switch format {
	case StatementFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return &Statement{
			Filename:    fmt.Sprintf("statement-%s-%s.csv", familyID, date),
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	case StatementFormatPDF:
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return &Statement{
			Filename:    fmt.Sprintf("statement-%s-%s.pdf", familyID, date),
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported statement format %q", format))
	}
}

func (s *FinanceService) buildStatementDataset(invoices []models.Invoice) export.Dataset {
	headers := []string{"Due Date", "Description", "Status", fmt.Sprintf("Amount (%s)", s.currency)}
	rows := make([]map[string]string, 0, len(invoices))
	var outstanding int64
	for _, invoice := range invoices {
		rows = append(rows, map[string]string{
			headers[0]: invoice.DueDate.Format("2006-01-02"),
			headers[1]: invoice.Description,
			headers[2]: string(invoice.Status),
			headers[3]: formatCents(invoice.AmountCents),
		})
		if invoice.Status == models.InvoiceStatusDue || invoice.Status == models.InvoiceStatusOverdue {
			outstanding += invoice.AmountCents
		}
	}
	return export.Dataset{
		Headers: headers,
		Rows:    rows,
		Footer: map[string]string{
			headers[1]: "Outstanding",
			headers[3]: formatCents(outstanding),
		},
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
