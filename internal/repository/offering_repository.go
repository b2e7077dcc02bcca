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

// OfferingRepository manages persistence for class offerings.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository constructs an OfferingRepository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

const offeringColumns = `o.id, o.program_id, o.teacher_id, o.name, o.days_of_week, o.start_time, o.end_time,
        o.start_date, o.stop_date, o.delivery_method, o.location, o.monthly_fee_cents, o.capacity, o.active,
        o.created_at, o.updated_at`

// List returns offerings matching the provided filters.
func (r *OfferingRepository) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	base := `FROM offerings o JOIN programs p ON p.id = o.program_id JOIN teachers t ON t.id = o.teacher_id`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("o.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("o.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("o.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	// Overlap test: an offering intersects [From, To] unless it ends before
	// From or starts after To.
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("o.stop_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("o.start_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "o.name",
		"start_date": "o.start_date",
		"created_at": "o.created_at",
	}
	if sortBy == "" {
		sortBy = "start_date"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "o.start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT %s, p.name AS program_name, t.full_name AS teacher_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.offering_id = o.id AND e.status = 'ACTIVE') AS enrolled_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, offeringColumns, base, column, order, size, offset)

	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list offerings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count offerings: %w", err)
	}
	return offerings, total, nil
}

// FindByID fetches an offering detail by ID.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	query := fmt.Sprintf(`SELECT %s, p.name AS program_name, t.full_name AS teacher_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.offering_id = o.id AND e.status = 'ACTIVE') AS enrolled_count
        FROM offerings o JOIN programs p ON p.id = o.program_id JOIN teachers t ON t.id = o.teacher_id
        WHERE o.id = $1`, offeringColumns)
	var detail models.OfferingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new offering record.
func (r *OfferingRepository) Create(ctx context.Context, offering *models.Offering) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if offering.CreatedAt.IsZero() {
		offering.CreatedAt = now
	}
	offering.UpdatedAt = now
	const query = `INSERT INTO offerings (id, program_id, teacher_id, name, days_of_week, start_time, end_time,
        start_date, stop_date, delivery_method, location, monthly_fee_cents, capacity, active, created_at, updated_at)
        VALUES (:id, :program_id, :teacher_id, :name, :days_of_week, :start_time, :end_time,
        :start_date, :stop_date, :delivery_method, :location, :monthly_fee_cents, :capacity, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		return fmt.Errorf("create offering: %w", err)
	}
	return nil
}

// Update modifies an existing offering.
func (r *OfferingRepository) Update(ctx context.Context, offering *models.Offering) error {
	offering.UpdatedAt = time.Now().UTC()
	const query = `UPDATE offerings SET program_id = :program_id, teacher_id = :teacher_id, name = :name,
        days_of_week = :days_of_week, start_time = :start_time, end_time = :end_time, start_date = :start_date,
        stop_date = :stop_date, delivery_method = :delivery_method, location = :location,
        monthly_fee_cents = :monthly_fee_cents, capacity = :capacity, active = :active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		return fmt.Errorf("update offering: %w", err)
	}
	return nil
}

// Deactivate marks an offering as inactive.
func (r *OfferingRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE offerings SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate offering: %w", err)
	}
	return nil
}
