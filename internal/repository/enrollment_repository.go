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

// EnrollmentRepository manages persistence for enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments matching the provided filters.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN offerings o ON o.id = e.offering_id
        JOIN programs p ON p.id = o.program_id`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.OfferingID != "" {
		conditions = append(conditions, fmt.Sprintf("e.offering_id = $%d", len(args)+1))
		args = append(args, filter.OfferingID)
	}
	if filter.FamilyID != "" {
		conditions = append(conditions, fmt.Sprintf("s.family_id = $%d", len(args)+1))
		args = append(args, filter.FamilyID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.offering_id, e.enrolled_at, e.ended_at, e.monthly_fee_cents, e.status,
        s.full_name AS student_name, o.name AS offering_name, p.name AS program_name
        %s ORDER BY e.enrolled_at %s LIMIT %d OFFSET %d`, base, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID fetches an enrollment by ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, offering_id, enrolled_at, ended_at, monthly_fee_cents, status
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActive reports whether the student already holds an active enrollment
// in the offering.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, offeringID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND offering_id = $2 AND status = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, offeringID, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// Create inserts a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, student_id, offering_id, enrolled_at, ended_at, monthly_fee_cents, status)
        VALUES (:id, :student_id, :offering_id, :enrolled_at, :ended_at, :monthly_fee_cents, :status)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus transitions an enrollment to the given status, stamping EndedAt
// for terminal states.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	var endedAt *time.Time
	if status == models.EnrollmentStatusCompleted || status == models.EnrollmentStatusCancelled {
		now := time.Now().UTC()
		endedAt = &now
	}
	const query = `UPDATE enrollments SET status = $2, ended_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, endedAt); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// CountActiveByFamily counts active enrollments held by a family's active
// students. Used by the family status-change impact assessment.
func (r *EnrollmentRepository) CountActiveByFamily(ctx context.Context, familyID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE s.family_id = $1 AND s.status = $2 AND e.status = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, familyID, models.StudentStatusActive, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count family enrollments: %w", err)
	}
	return count, nil
}
