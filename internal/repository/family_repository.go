package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/melodia-school/melodia-api/internal/models"
)

// FamilyRepository manages persistence for family records.
type FamilyRepository struct {
	db *sqlx.DB
}

// NewFamilyRepository constructs a FamilyRepository.
func NewFamilyRepository(db *sqlx.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// List returns families matching the provided filters.
func (r *FamilyRepository) List(ctx context.Context, filter models.FamilyFilter) ([]models.FamilyDetail, int, error) {
	base := "FROM families f"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Status != "" {
		// A NULL status counts as active for filtering purposes.
		if filter.Status == models.FamilyStatusActive {
			conditions = append(conditions, fmt.Sprintf("(f.status = $%d OR f.status IS NULL)", len(args)+1))
		} else {
			conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)+1))
		}
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(f.name) LIKE $%d OR LOWER(f.primary_contact) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "f.name",
		"created_at": "f.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "f.created_at"
	}
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

	query := fmt.Sprintf(`SELECT f.id, f.name, f.primary_contact, f.email, f.phone, f.status,
        f.status_changed_at, f.status_changed_by, f.status_change_reason, f.created_at, f.updated_at,
        (SELECT COUNT(*) FROM students s WHERE s.family_id = f.id) AS student_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var families []models.FamilyDetail
	if err := r.db.SelectContext(ctx, &families, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list families: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count families: %w", err)
	}
	return families, total, nil
}

// FindByID fetches a family by ID.
func (r *FamilyRepository) FindByID(ctx context.Context, id string) (*models.FamilyDetail, error) {
	const query = `SELECT f.id, f.name, f.primary_contact, f.email, f.phone, f.status,
        f.status_changed_at, f.status_changed_by, f.status_change_reason, f.created_at, f.updated_at,
        (SELECT COUNT(*) FROM students s WHERE s.family_id = f.id) AS student_count
        FROM families f WHERE f.id = $1`
	var detail models.FamilyDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new family record.
func (r *FamilyRepository) Create(ctx context.Context, family *models.Family) error {
	if family.ID == "" {
		family.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if family.CreatedAt.IsZero() {
		family.CreatedAt = now
	}
	family.UpdatedAt = now
	const query = `INSERT INTO families (id, name, primary_contact, email, phone, status, created_at, updated_at)
        VALUES (:id, :name, :primary_contact, :email, :phone, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, family); err != nil {
		return fmt.Errorf("create family: %w", err)
	}
	return nil
}

// Update modifies an existing family. Status fields change only through
// UpdateStatus.
func (r *FamilyRepository) Update(ctx context.Context, family *models.Family) error {
	family.UpdatedAt = time.Now().UTC()
	const query = `UPDATE families SET name = :name, primary_contact = :primary_contact, email = :email,
        phone = :phone, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, family); err != nil {
		return fmt.Errorf("update family: %w", err)
	}
	return nil
}

// UpdateStatus persists a new lifecycle status together with the audit fields.
func (r *FamilyRepository) UpdateStatus(ctx context.Context, id string, status models.FamilyStatus, changedBy string, reason *string, changedAt time.Time) error {
	const query = `UPDATE families SET status = $2, status_changed_at = $3, status_changed_by = $4,
        status_change_reason = $5, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, changedAt, changedBy, reason)
	if err != nil {
		return fmt.Errorf("update family status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
