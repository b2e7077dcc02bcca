package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodia-school/melodia-api/internal/models"
)

func newInvoiceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestInvoiceRepositoryBalanceByFamily(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	rows := sqlmock.NewRows([]string{"family_id", "outstanding_cents", "paid_cents", "open_invoices"}).
		AddRow("f1", 26500, 25000, 2)
	mock.ExpectQuery("SELECT \\$1::text AS family_id").
		WithArgs("f1").
		WillReturnRows(rows)

	balance, err := repo.BalanceByFamily(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(26500), balance.OutstandingCents)
	assert.Equal(t, int64(25000), balance.PaidCents)
	assert.Equal(t, 2, balance.OpenInvoices)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryMarkPaid(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	paidAt := time.Now().UTC()
	mock.ExpectExec("UPDATE invoices SET status").
		WithArgs("i1", "PAID", paidAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkPaid(context.Background(), "i1", paidAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectExec("INSERT INTO invoices").
		WillReturnResult(sqlmock.NewResult(1, 1))

	invoice := &models.Invoice{FamilyID: "f1", Description: "March tuition", AmountCents: 25000, Status: models.InvoiceStatusDue, DueDate: time.Now()}
	require.NoError(t, repo.Create(context.Background(), invoice))
	assert.NotEmpty(t, invoice.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryList(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "family_id", "student_id", "description", "amount_cents", "status", "due_date", "paid_at", "created_at", "updated_at"}).
		AddRow("i1", "f1", nil, "March tuition", 25000, "DUE", time.Now(), nil, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT i\.id, i\.family_id, i\.student_id`).
		WithArgs("f1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM invoices")).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	invoices, total, err := repo.List(context.Background(), models.InvoiceFilter{FamilyID: "f1"})
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
