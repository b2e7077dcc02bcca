package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodia-school/melodia-api/internal/models"
	appErrors "github.com/melodia-school/melodia-api/pkg/errors"
)

type mockStatusStudentRepo struct {
	student     *models.StudentDetail
	findErr     error
	updateErr   error
	updateCalls int
	lastStatus  models.StudentStatus
	lastReason  *string
	activeCount int
	countErr    error
}

func (m *mockStatusStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.student, nil
}

func (m *mockStatusStudentRepo) UpdateStatus(ctx context.Context, id string, status models.StudentStatus, changedBy string, reason *string, changedAt time.Time) error {
	m.updateCalls++
	m.lastStatus = status
	m.lastReason = reason
	return m.updateErr
}

func (m *mockStatusStudentRepo) CountActiveByFamily(ctx context.Context, familyID string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.activeCount, nil
}

type mockStatusFamilyRepo struct {
	family      *models.FamilyDetail
	findErr     error
	updateErr   error
	updateCalls int
	lastStatus  models.FamilyStatus
}

func (m *mockStatusFamilyRepo) FindByID(ctx context.Context, id string) (*models.FamilyDetail, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.family, nil
}

func (m *mockStatusFamilyRepo) UpdateStatus(ctx context.Context, id string, status models.FamilyStatus, changedBy string, reason *string, changedAt time.Time) error {
	m.updateCalls++
	m.lastStatus = status
	return m.updateErr
}

type mockStatusHistoryRepo struct {
	entries   []models.StatusHistoryEntry
	appendErr error
	listErr   error
	appended  []*models.StatusHistoryEntry
}

func (m *mockStatusHistoryRepo) Append(ctx context.Context, entry *models.StatusHistoryEntry) error {
	m.appended = append(m.appended, entry)
	return m.appendErr
}

func (m *mockStatusHistoryRepo) ListByEntity(ctx context.Context, entityType models.StatusEntityType, entityID string, limit int) ([]models.StatusHistoryEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.entries, nil
}

type mockStatusEnrollmentRepo struct {
	activeCount int
	countErr    error
}

func (m *mockStatusEnrollmentRepo) CountActiveByFamily(ctx context.Context, familyID string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.activeCount, nil
}

func activeStudent() *models.StudentDetail {
	return &models.StudentDetail{Student: models.Student{ID: "s1", Status: models.StudentStatusActive}}
}

func newTestStatusService(students *mockStatusStudentRepo, families *mockStatusFamilyRepo, history *mockStatusHistoryRepo, enrollments *mockStatusEnrollmentRepo, actions map[string]BusinessActionFunc) *StatusService {
	svc := NewStatusService(students, families, history, enrollments, actions, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestValidateStudentStatusChange(t *testing.T) {
	svc := newTestStatusService(&mockStatusStudentRepo{}, &mockStatusFamilyRepo{}, &mockStatusHistoryRepo{}, &mockStatusEnrollmentRepo{}, nil)

	valid := svc.ValidateStudentStatusChange(models.StudentStatusTrial, models.StudentStatusActive)
	assert.True(t, valid.IsValid)
	assert.False(t, valid.RequiresReason)

	invalid := svc.ValidateStudentStatusChange(models.StudentStatusTrial, models.StudentStatusGraduated)
	assert.False(t, invalid.IsValid)
	assert.NotEmpty(t, invalid.ErrorMessage)

	// Graduated is terminal.
	terminal := svc.ValidateStudentStatusChange(models.StudentStatusGraduated, models.StudentStatusActive)
	assert.False(t, terminal.IsValid)
	assert.Empty(t, terminal.AllowedTransitions)

	// Self-transitions are never listed.
	self := svc.ValidateStudentStatusChange(models.StudentStatusActive, models.StudentStatusActive)
	assert.False(t, self.IsValid)

	// Reason/approval flags come from the current status even when the
	// transition is rejected.
	rejected := svc.ValidateStudentStatusChange(models.StudentStatusWithdrawn, models.StudentStatusGraduated)
	assert.False(t, rejected.IsValid)
	assert.True(t, rejected.RequiresReason)
	assert.True(t, rejected.RequiresApproval)

	unknown := svc.ValidateStudentStatusChange("bogus", models.StudentStatusActive)
	assert.False(t, unknown.IsValid)
	assert.Contains(t, unknown.ErrorMessage, "unknown current status")
}

func TestChangeStudentStatusInvalidTransitionBlocksWrite(t *testing.T) {
	students := &mockStatusStudentRepo{student: activeStudent()}
	svc := newTestStatusService(students, &mockStatusFamilyRepo{}, &mockStatusHistoryRepo{}, &mockStatusEnrollmentRepo{}, nil)

	_, err := svc.ChangeStudentStatus(context.Background(), "s1", ChangeStatusRequest{Status: "trial"}, "admin")
	require.Error(t, err)
	apiErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, apiErr.Code)
	assert.Zero(t, students.updateCalls)
}

func TestChangeStudentStatusReasonRequired(t *testing.T) {
	students := &mockStatusStudentRepo{student: activeStudent()}
	svc := newTestStatusService(students, &mockStatusFamilyRepo{}, &mockStatusHistoryRepo{}, &mockStatusEnrollmentRepo{}, nil)

	_, err := svc.ChangeStudentStatus(context.Background(), "s1", ChangeStatusRequest{Status: "on_hold"}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, students.updateCalls)

	empty := ""
	_, err = svc.ChangeStudentStatus(context.Background(), "s1", ChangeStatusRequest{Status: "on_hold", Reason: &empty}, "admin")
	require.Error(t, err)
	assert.Zero(t, students.updateCalls)
}

func TestChangeStudentStatusHappyPath(t *testing.T) {
	students := &mockStatusStudentRepo{student: activeStudent()}
	history := &mockStatusHistoryRepo{}
	var dispatched []string
	actions := map[string]BusinessActionFunc{
		models.ActionPauseBilling: func(ctx context.Context, et models.StatusEntityType, id string) error {
			dispatched = append(dispatched, models.ActionPauseBilling)
			return nil
		},
		models.ActionNotifyAdmin: func(ctx context.Context, et models.StatusEntityType, id string) error {
			dispatched = append(dispatched, models.ActionNotifyAdmin)
			return nil
		},
	}
	svc := newTestStatusService(students, &mockStatusFamilyRepo{}, history, &mockStatusEnrollmentRepo{}, actions)

	reason := "summer break"
	resp, err := svc.ChangeStudentStatus(context.Background(), "s1", ChangeStatusRequest{Status: "on_hold", Reason: &reason}, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, 1, students.updateCalls)
	assert.Equal(t, models.StudentStatusOnHold, students.lastStatus)
	assert.Equal(t, models.StudentStatusOnHold, resp.Student.Status)
	assert.Equal(t, []string{models.ActionPauseBilling, models.ActionNotifyAdmin}, resp.ActionsQueued)
	assert.Equal(t, []string{models.ActionPauseBilling, models.ActionNotifyAdmin}, dispatched)

	require.Len(t, history.appended, 1)
	entry := history.appended[0]
	assert.Equal(t, models.StatusEntityStudent, entry.EntityType)
	assert.Equal(t, "active", *entry.OldStatus)
	assert.Equal(t, "on_hold", entry.NewStatus)
	assert.Equal(t, "admin-1", entry.ChangedBy)
	assert.Equal(t, &reason, entry.ChangeReason)
}

func TestChangeStudentStatusSurvivesHistoryAndActionFailures(t *testing.T) {
	students := &mockStatusStudentRepo{student: activeStudent()}
	history := &mockStatusHistoryRepo{appendErr: errors.New("history table missing")}
	actions := map[string]BusinessActionFunc{
		models.ActionStopBilling: func(ctx context.Context, et models.StatusEntityType, id string) error {
			return errors.New("billing provider down")
		},
	}
	svc := newTestStatusService(students, &mockStatusFamilyRepo{}, history, &mockStatusEnrollmentRepo{}, actions)

	reason := "finished the program"
	resp, err := svc.ChangeStudentStatus(context.Background(), "s1", ChangeStatusRequest{Status: "graduated", Reason: &reason}, "admin")
	require.NoError(t, err)
	// stop_billing ran and failed; send_congratulations has no handler here.
	assert.Equal(t, []string{models.ActionStopBilling}, resp.ActionsQueued)
	assert.Equal(t, models.StudentStatusGraduated, resp.Student.Status)
}

func TestChangeStudentStatusNotFound(t *testing.T) {
	students := &mockStatusStudentRepo{findErr: sql.ErrNoRows}
	svc := newTestStatusService(students, &mockStatusFamilyRepo{}, &mockStatusHistoryRepo{}, &mockStatusEnrollmentRepo{}, nil)

	_, err := svc.ChangeStudentStatus(context.Background(), "missing", ChangeStatusRequest{Status: "active"}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestChangeFamilyStatusReturnsImpact(t *testing.T) {
	students := &mockStatusStudentRepo{activeCount: 2}
	families := &mockStatusFamilyRepo{family: &models.FamilyDetail{Family: models.Family{ID: "f1"}}}
	history := &mockStatusHistoryRepo{}
	enrollments := &mockStatusEnrollmentRepo{activeCount: 3}
	svc := newTestStatusService(students, families, history, enrollments, map[string]BusinessActionFunc{})

	resp, err := svc.ChangeFamilyStatus(context.Background(), "f1", ChangeStatusRequest{Status: "inactive"}, "admin")
	require.NoError(t, err)

	assert.Equal(t, 1, families.updateCalls)
	assert.Equal(t, models.FamilyStatusInactive, families.lastStatus)
	require.NotNil(t, resp.Impact)
	assert.Equal(t, 2, resp.Impact.AffectedStudents)
	assert.Equal(t, 3, resp.Impact.AffectedEnrollments)
	assert.True(t, resp.Impact.BillingChanges)
	assert.Len(t, resp.Impact.Warnings, 2)

	// A nil stored status is recorded as a change from "active".
	require.Len(t, history.appended, 1)
	assert.Equal(t, "active", *history.appended[0].OldStatus)
	assert.Equal(t, "inactive", history.appended[0].NewStatus)
}

func TestChangeFamilyStatusReactivationSkipsBilling(t *testing.T) {
	inactive := models.FamilyStatusInactive
	students := &mockStatusStudentRepo{activeCount: 2}
	families := &mockStatusFamilyRepo{family: &models.FamilyDetail{Family: models.Family{ID: "f1", Status: &inactive}}}
	svc := newTestStatusService(students, families, &mockStatusHistoryRepo{}, &mockStatusEnrollmentRepo{activeCount: 3}, map[string]BusinessActionFunc{})

	resp, err := svc.ChangeFamilyStatus(context.Background(), "f1", ChangeStatusRequest{Status: "active"}, "admin")
	require.NoError(t, err)

	assert.Equal(t, models.FamilyStatusActive, families.lastStatus)
	require.NotNil(t, resp.Impact)
	// Billing only changes when a family goes inactive; reactivation
	// counts the affected records but flags nothing.
	assert.False(t, resp.Impact.BillingChanges)
	assert.Equal(t, 2, resp.Impact.AffectedStudents)
	assert.Equal(t, 3, resp.Impact.AffectedEnrollments)
	assert.Empty(t, resp.Impact.Warnings)
}

func TestChangeFamilyStatusRejectsUnknownStatus(t *testing.T) {
	families := &mockStatusFamilyRepo{family: &models.FamilyDetail{Family: models.Family{ID: "f1"}}}
	svc := newTestStatusService(&mockStatusStudentRepo{}, families, &mockStatusHistoryRepo{}, &mockStatusEnrollmentRepo{}, nil)

	_, err := svc.ChangeFamilyStatus(context.Background(), "f1", ChangeStatusRequest{Status: "graduated"}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, families.updateCalls)
}

func TestChangeFamilyStatusImpactDegradesOnCountFailure(t *testing.T) {
	students := &mockStatusStudentRepo{countErr: errors.New("db down")}
	families := &mockStatusFamilyRepo{family: &models.FamilyDetail{Family: models.Family{ID: "f1"}}}
	svc := newTestStatusService(students, families, &mockStatusHistoryRepo{}, &mockStatusEnrollmentRepo{}, map[string]BusinessActionFunc{})

	resp, err := svc.ChangeFamilyStatus(context.Background(), "f1", ChangeStatusRequest{Status: "inactive"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, families.updateCalls)
	assert.Zero(t, resp.Impact.AffectedStudents)
	assert.Contains(t, resp.Impact.Warnings, "could not determine affected students")
}

func TestGetStatusHistoryFailsSoft(t *testing.T) {
	history := &mockStatusHistoryRepo{listErr: errors.New("connection refused")}
	svc := newTestStatusService(&mockStatusStudentRepo{}, &mockStatusFamilyRepo{}, history, &mockStatusEnrollmentRepo{}, nil)

	entries := svc.GetStatusHistory(context.Background(), models.StatusEntityStudent, "s1", 10)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestStatusPermissionsMatrix(t *testing.T) {
	svc := newTestStatusService(&mockStatusStudentRepo{}, &mockStatusFamilyRepo{}, &mockStatusHistoryRepo{}, &mockStatusEnrollmentRepo{}, nil)

	admin := svc.PermissionsFor(models.RoleAdmin, models.StatusEntityStudent)
	assert.True(t, admin.CanEdit)
	assert.Len(t, admin.AllowedTransitions, len(models.AllStudentStatuses))

	teacher := svc.PermissionsFor(models.RoleTeacher, models.StatusEntityFamily)
	assert.True(t, teacher.CanView)
	assert.False(t, teacher.CanEdit)

	parent := svc.PermissionsFor(models.RoleParent, models.StatusEntityStudent)
	assert.True(t, parent.CanView)
	assert.False(t, parent.CanEdit)
	assert.Empty(t, parent.AllowedTransitions)

	student := svc.PermissionsFor(models.RoleStudent, models.StatusEntityFamily)
	assert.False(t, student.CanView)

	unknown := svc.PermissionsFor(models.UserRole("GUEST"), models.StatusEntityStudent)
	assert.False(t, unknown.CanView)
	assert.False(t, unknown.CanEdit)
	assert.NotNil(t, unknown.AllowedTransitions)
}
