package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodia-school/melodia-api/internal/models"
	appErrors "github.com/melodia-school/melodia-api/pkg/errors"
)

type mockInvoiceRepo struct {
	invoices []models.Invoice
	invoice  *models.Invoice
	findErr  error
	balance  *models.FamilyBalance
	created  []*models.Invoice
	paid     []string
}

func (m *mockInvoiceRepo) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	return m.invoices, len(m.invoices), nil
}

func (m *mockInvoiceRepo) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.invoice, nil
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *models.Invoice) error {
	m.created = append(m.created, invoice)
	return nil
}

func (m *mockInvoiceRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	m.paid = append(m.paid, id)
	return nil
}

func (m *mockInvoiceRepo) BalanceByFamily(ctx context.Context, familyID string) (*models.FamilyBalance, error) {
	return m.balance, nil
}

type stubFamilyReader struct {
	family *models.FamilyDetail
	err    error
}

func (s *stubFamilyReader) FindByID(ctx context.Context, id string) (*models.FamilyDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.family, nil
}

func smithFamily() *models.FamilyDetail {
	return &models.FamilyDetail{Family: models.Family{ID: "f1", Name: "Smith"}}
}

func TestCreateInvoice(t *testing.T) {
	repo := &mockInvoiceRepo{}
	svc := NewFinanceService(repo, &stubFamilyReader{family: smithFamily()}, "USD", nil, nil)

	invoice, err := svc.Create(context.Background(), CreateInvoiceRequest{
		FamilyID:    "f1",
		Description: "March tuition",
		AmountCents: 25000,
		DueDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusDue, invoice.Status)
	require.Len(t, repo.created, 1)

	_, err = svc.Create(context.Background(), CreateInvoiceRequest{FamilyID: "f1", Description: "bad", AmountCents: 0, DueDate: time.Now()})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMarkPaidConflicts(t *testing.T) {
	paidAt := time.Now().UTC()
	repo := &mockInvoiceRepo{invoice: &models.Invoice{ID: "i1", Status: models.InvoiceStatusPaid, PaidAt: &paidAt}}
	svc := NewFinanceService(repo, &stubFamilyReader{family: smithFamily()}, "USD", nil, nil)

	_, err := svc.MarkPaid(context.Background(), "i1")
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	repo.invoice = &models.Invoice{ID: "i2", Status: models.InvoiceStatusVoid}
	_, err = svc.MarkPaid(context.Background(), "i2")
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	repo.invoice = &models.Invoice{ID: "i3", Status: models.InvoiceStatusOverdue}
	invoice, err := svc.MarkPaid(context.Background(), "i3")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
	assert.NotNil(t, invoice.PaidAt)
	assert.Equal(t, []string{"i3"}, repo.paid)
}

func TestMarkPaidNotFound(t *testing.T) {
	repo := &mockInvoiceRepo{findErr: sql.ErrNoRows}
	svc := NewFinanceService(repo, &stubFamilyReader{family: smithFamily()}, "USD", nil, nil)

	_, err := svc.MarkPaid(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStatementCSVIncludesOutstandingTotal(t *testing.T) {
	repo := &mockInvoiceRepo{invoices: []models.Invoice{
		{Description: "January tuition", Status: models.InvoiceStatusPaid, AmountCents: 25000, DueDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Description: "February tuition", Status: models.InvoiceStatusDue, AmountCents: 25000, DueDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{Description: "Late fee", Status: models.InvoiceStatusOverdue, AmountCents: 1500, DueDate: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewFinanceService(repo, &stubFamilyReader{family: smithFamily()}, "USD", nil, nil)

	stmt, err := svc.Statement(context.Background(), "f1", StatementFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", stmt.ContentType)
	assert.True(t, strings.HasSuffix(stmt.Filename, ".csv"))

	body := string(stmt.Payload)
	assert.Contains(t, body, "Amount (USD)")
	assert.Contains(t, body, "February tuition")
	// Due 250.00 plus overdue 15.00; paid invoices do not count.
	assert.Contains(t, body, "Outstanding")
	assert.Contains(t, body, "265.00")
}

func TestStatementPDFAndUnknownFormat(t *testing.T) {
	repo := &mockInvoiceRepo{invoices: []models.Invoice{
		{Description: "January tuition", Status: models.InvoiceStatusDue, AmountCents: 25000, DueDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewFinanceService(repo, &stubFamilyReader{family: smithFamily()}, "USD", nil, nil)

	stmt, err := svc.Statement(context.Background(), "f1", StatementFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", stmt.ContentType)
	assert.NotEmpty(t, stmt.Payload)

	_, err = svc.Statement(context.Background(), "f1", StatementFormat("xlsx"))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStatementUnknownFamily(t *testing.T) {
	svc := NewFinanceService(&mockInvoiceRepo{}, &stubFamilyReader{err: sql.ErrNoRows}, "USD", nil, nil)

	_, err := svc.Statement(context.Background(), "missing", StatementFormatCSV)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBalancePassthrough(t *testing.T) {
	repo := &mockInvoiceRepo{balance: &models.FamilyBalance{FamilyID: "f1", OutstandingCents: 26500, PaidCents: 25000, OpenInvoices: 2}}
	svc := NewFinanceService(repo, &stubFamilyReader{family: smithFamily()}, "USD", nil, nil)

	balance, err := svc.Balance(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(26500), balance.OutstandingCents)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "0.00", formatCents(0))
	assert.Equal(t, "2.05", formatCents(205))
	assert.Equal(t, "-13.37", formatCents(-1337))
}
