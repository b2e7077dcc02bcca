package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodia-school/melodia-api/internal/models"
	appErrors "github.com/melodia-school/melodia-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollment *models.Enrollment
	findErr    error
	exists     bool
	created    []*models.Enrollment
	statusSet  models.EnrollmentStatus
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.enrollment, nil
}

func (m *mockEnrollmentRepo) ExistsActive(ctx context.Context, studentID, offeringID string) (bool, error) {
	return m.exists, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	m.created = append(m.created, enrollment)
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	m.statusSet = status
	return nil
}

type stubStudentReader struct {
	err error
}

func (s *stubStudentReader) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.StudentDetail{Student: models.Student{ID: id}}, nil
}

type stubOfferingReader struct {
	detail *models.OfferingDetail
	err    error
}

func (s *stubOfferingReader) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

func openOffering() *models.OfferingDetail {
	return &models.OfferingDetail{
		Offering:      models.Offering{ID: "off-1", Name: "Piano Basics", MonthlyFee: 12000, Capacity: 10, Active: true},
		EnrolledCount: 4,
	}
}

func TestEnrollSnapshotsFee(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := NewEnrollmentService(repo, &stubStudentReader{}, &stubOfferingReader{detail: openOffering()}, nil, nil)

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", OfferingID: "off-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(12000), enrollment.MonthlyFee)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.Len(t, repo.created, 1)
}

func TestEnrollRejectsFullOffering(t *testing.T) {
	full := openOffering()
	full.EnrolledCount = full.Capacity
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &stubStudentReader{}, &stubOfferingReader{detail: full}, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", OfferingID: "off-1"})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollRejectsDuplicateActive(t *testing.T) {
	repo := &mockEnrollmentRepo{exists: true}
	svc := NewEnrollmentService(repo, &stubStudentReader{}, &stubOfferingReader{detail: openOffering()}, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", OfferingID: "off-1"})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestEnrollRejectsInactiveOffering(t *testing.T) {
	closed := openOffering()
	closed.Active = false
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &stubStudentReader{}, &stubOfferingReader{detail: closed}, nil, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", OfferingID: "off-1"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollUnknownStudentOrOffering(t *testing.T) {
	svc := NewEnrollmentService(&mockEnrollmentRepo{}, &stubStudentReader{err: sql.ErrNoRows}, &stubOfferingReader{detail: openOffering()}, nil, nil)
	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "missing", OfferingID: "off-1"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	svc = NewEnrollmentService(&mockEnrollmentRepo{}, &stubStudentReader{}, &stubOfferingReader{err: sql.ErrNoRows}, nil, nil)
	_, err = svc.Enroll(context.Background(), EnrollRequest{StudentID: "s1", OfferingID: "missing"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCancelAndCompleteRequireActive(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollment: &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusActive}}
	svc := NewEnrollmentService(repo, &stubStudentReader{}, &stubOfferingReader{}, nil, nil)

	require.NoError(t, svc.Cancel(context.Background(), "e1"))
	assert.Equal(t, models.EnrollmentStatusCancelled, repo.statusSet)

	repo.enrollment.Status = models.EnrollmentStatusCancelled
	err := svc.Complete(context.Background(), "e1")
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	repo.enrollment.Status = models.EnrollmentStatusActive
	require.NoError(t, svc.Complete(context.Background(), "e1"))
	assert.Equal(t, models.EnrollmentStatusCompleted, repo.statusSet)
}
