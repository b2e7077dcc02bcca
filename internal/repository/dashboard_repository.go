package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/melodia-school/melodia-api/internal/models"
)

// DashboardRepository aggregates headline counts for the admin dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Summary computes the dashboard aggregate in a single round trip.
func (r *DashboardRepository) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students WHERE status = 'trial') AS trial_students,
        (SELECT COUNT(*) FROM students WHERE status = 'waitlist') AS waitlist_students,
        (SELECT COUNT(*) FROM students WHERE status = 'active') AS active_students,
        (SELECT COUNT(*) FROM students WHERE status = 'on_hold') AS on_hold_students,
        (SELECT COUNT(*) FROM students WHERE status = 'inactive') AS inactive_students,
        (SELECT COUNT(*) FROM students WHERE status = 'withdrawn') AS withdrawn_students,
        (SELECT COUNT(*) FROM students WHERE status = 'graduated') AS graduated_students,
        (SELECT COUNT(*) FROM families WHERE status IS NULL OR status = 'active') AS active_families,
        (SELECT COUNT(*) FROM teachers WHERE active) AS active_teachers,
        (SELECT COUNT(*) FROM offerings WHERE active) AS active_offerings,
        (SELECT COUNT(*) FROM enrollments WHERE status = 'ACTIVE') AS active_enrollments,
        (SELECT COALESCE(SUM(amount_cents), 0) FROM invoices WHERE status IN ('DUE', 'OVERDUE')) AS outstanding_cents`

	var summary models.DashboardSummary
	if err := r.db.GetContext(ctx, &summary, query); err != nil {
		return nil, fmt.Errorf("dashboard summary: %w", err)
	}
	return &summary, nil
}
