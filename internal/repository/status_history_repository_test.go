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

func newHistoryRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStatusHistoryAppendFillsDefaults(t *testing.T) {
	db, mock, cleanup := newHistoryRepoMock(t)
	defer cleanup()
	repo := NewStatusHistoryRepository(db)

	mock.ExpectExec("INSERT INTO status_history").
		WillReturnResult(sqlmock.NewResult(1, 1))

	old := "active"
	entry := &models.StatusHistoryEntry{
		EntityType: models.StatusEntityStudent,
		EntityID:   "s1",
		OldStatus:  &old,
		NewStatus:  "on_hold",
		ChangedBy:  "admin-1",
	}
	require.NoError(t, repo.Append(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.ChangedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusHistoryListByEntity(t *testing.T) {
	db, mock, cleanup := newHistoryRepoMock(t)
	defer cleanup()
	repo := NewStatusHistoryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "entity_type", "entity_id", "old_status", "new_status", "changed_by", "change_reason", "changed_at", "metadata"}).
		AddRow("h2", "student", "s1", "on_hold", "active", "admin-1", nil, time.Now(), nil).
		AddRow("h1", "student", "s1", "active", "on_hold", "admin-1", "summer break", time.Now().Add(-time.Hour), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM status_history WHERE entity_type = $1 AND entity_id = $2 ORDER BY changed_at DESC LIMIT 10")).
		WithArgs("student", "s1").
		WillReturnRows(rows)

	entries, err := repo.ListByEntity(context.Background(), models.StatusEntityStudent, "s1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "h2", entries[0].ID)
	assert.Equal(t, "summer break", *entries[1].ChangeReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}
