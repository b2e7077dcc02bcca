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
)

type statusStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus, changedBy string, reason *string, changedAt time.Time) error
	CountActiveByFamily(ctx context.Context, familyID string) (int, error)
}

type statusFamilyRepository interface {
	FindByID(ctx context.Context, id string) (*models.FamilyDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.FamilyStatus, changedBy string, reason *string, changedAt time.Time) error
}

type statusHistoryRepository interface {
	Append(ctx context.Context, entry *models.StatusHistoryEntry) error
	ListByEntity(ctx context.Context, entityType models.StatusEntityType, entityID string, limit int) ([]models.StatusHistoryEntry, error)
}

type statusEnrollmentRepository interface {
	CountActiveByFamily(ctx context.Context, familyID string) (int, error)
}

// BusinessActionFunc executes one side effect after an entity enters a status.
// Failures are logged and never surfaced to the caller.
type BusinessActionFunc func(ctx context.Context, entityType models.StatusEntityType, entityID string) error

// ChangeStatusRequest is the payload for a student or family status change.
type ChangeStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Reason *string `json:"reason"`
}

// ChangeStudentStatusResponse is returned after a successful student change.
type ChangeStudentStatusResponse struct {
	Student       *models.StudentDetail `json:"student"`
	ActionsQueued []string              `json:"actions_queued"`
}

// ChangeFamilyStatusResponse bundles the updated family with the impact that
// was assessed before the write.
type ChangeFamilyStatusResponse struct {
	Family        *models.FamilyDetail       `json:"family"`
	Impact        *models.StatusChangeImpact `json:"impact"`
	ActionsQueued []string                   `json:"actions_queued"`
}

// StatusService orchestrates lifecycle status changes: validation against the
// transition rules, the status write, history logging, and business actions.
type StatusService struct {
	students    statusStudentRepository
	families    statusFamilyRepository
	history     statusHistoryRepository
	enrollments statusEnrollmentRepository
	actions     map[string]BusinessActionFunc
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewStatusService constructs the status service. When actions is nil a
// default registry of logging stubs is installed; real billing and mail
// integrations replace individual entries at wiring time.
func NewStatusService(
	students statusStudentRepository,
	families statusFamilyRepository,
	history statusHistoryRepository,
	enrollments statusEnrollmentRepository,
	actions map[string]BusinessActionFunc,
	validate *validator.Validate,
	logger *zap.Logger,
) *StatusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StatusService{
		students:    students,
		families:    families,
		history:     history,
		enrollments: enrollments,
		actions:     actions,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.actions == nil {
		s.actions = defaultBusinessActions(logger)
	}
	return s
}

// defaultBusinessActions returns stub handlers that only log the dispatch.
func defaultBusinessActions(logger *zap.Logger) map[string]BusinessActionFunc {
	registry := make(map[string]BusinessActionFunc)
	for _, name := range []string{
		models.ActionSuspendBilling,
		models.ActionResumeBilling,
		models.ActionPauseBilling,
		models.ActionStopBilling,
		models.ActionNotifyAdmin,
		models.ActionSendWelcomeBack,
		models.ActionSendFarewell,
		models.ActionSendCongrats,
	} {
		action := name
		registry[action] = func(ctx context.Context, entityType models.StatusEntityType, entityID string) error {
			logger.Info("business action dispatched",
				zap.String("action", action),
				zap.String("entity_type", string(entityType)),
				zap.String("entity_id", entityID))
			return nil
		}
	}
	return registry
}

// ValidateStudentStatusChange checks a proposed transition against the
// lifecycle rules. RequiresReason and RequiresApproval always reflect the rule
// for the current status, even when the transition itself is rejected.
func (s *StatusService) ValidateStudentStatusChange(current, next models.StudentStatus) models.StatusValidationResult {
	rule, ok := models.StudentStatusTransitionRules[current]
	if !ok {
		return models.StatusValidationResult{
			AllowedTransitions: []models.StudentStatus{},
			ErrorMessage:       fmt.Sprintf("unknown current status %q", current),
		}
	}

	result := models.StatusValidationResult{
		RequiresReason:     rule.RequiresReason,
		RequiresApproval:   rule.RequiresApproval,
		AllowedTransitions: rule.AllowedTransitions,
	}

	for _, allowed := range rule.AllowedTransitions {
		if allowed == next {
			result.IsValid = true
			return result
		}
	}

	result.ErrorMessage = fmt.Sprintf("cannot change status from %q to %q", current, next)
	return result
}

// PermissionsFor resolves the status capability set for a role and entity type.
func (s *StatusService) PermissionsFor(role models.UserRole, entity models.StatusEntityType) models.StatusPermissions {
	return models.StatusPermissionsFor(role, entity)
}

// ChangeStudentStatus validates and applies a student status transition, then
// records history and dispatches the target status's business actions. History
// and action failures are logged but never fail the call once the status write
// has committed.
func (s *StatusService) ChangeStudentStatus(ctx context.Context, studentID string, req ChangeStatusRequest, changedBy string) (*ChangeStudentStatusResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	next := models.StudentStatus(req.Status)
	validation := s.ValidateStudentStatusChange(student.Status, next)
	if !validation.IsValid {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, validation.ErrorMessage)
	}
	if validation.RequiresReason && (req.Reason == nil || *req.Reason == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("a reason is required when leaving status %q", student.Status))
	}

	changedAt := s.now()
	if err := s.students.UpdateStatus(ctx, studentID, next, changedBy, req.Reason, changedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student status")
	}

	old := string(student.Status)
	s.appendHistory(ctx, &models.StatusHistoryEntry{
		EntityType:   models.StatusEntityStudent,
		EntityID:     studentID,
		OldStatus:    &old,
		NewStatus:    string(next),
		ChangedBy:    changedBy,
		ChangeReason: req.Reason,
		ChangedAt:    changedAt,
	})

	dispatched := s.dispatchActions(ctx, models.StatusEntityStudent, studentID, models.StudentStatusTransitionRules[next].AutoActions)

	student.Status = next
	student.StatusChangedAt = &changedAt
	student.StatusChangedBy = &changedBy
	student.StatusChangeReason = req.Reason

	return &ChangeStudentStatusResponse{Student: student, ActionsQueued: dispatched}, nil
}

// ChangeFamilyStatus applies a family status change. Family transitions carry
// no rule table, so any valid target status is accepted once the caller's role
// has passed the route guard. The dependent-record impact is assessed before
// the write and returned alongside the updated family.
func (s *StatusService) ChangeFamilyStatus(ctx context.Context, familyID string, req ChangeStatusRequest, changedBy string) (*ChangeFamilyStatusResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	next := models.FamilyStatus(req.Status)
	if next != models.FamilyStatusActive && next != models.FamilyStatusInactive {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown family status %q", req.Status))
	}

	family, err := s.families.FindByID(ctx, familyID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
	}

	impact := s.assessFamilyImpact(ctx, familyID, next)

	changedAt := s.now()
	if err := s.families.UpdateStatus(ctx, familyID, next, changedBy, req.Reason, changedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update family status")
	}

	var old *string
	if family.Status != nil {
		v := string(*family.Status)
		old = &v
	} else {
		v := string(models.FamilyStatusActive)
		old = &v
	}
	s.appendHistory(ctx, &models.StatusHistoryEntry{
		EntityType:   models.StatusEntityFamily,
		EntityID:     familyID,
		OldStatus:    old,
		NewStatus:    string(next),
		ChangedBy:    changedBy,
		ChangeReason: req.Reason,
		ChangedAt:    changedAt,
	})

	dispatched := s.dispatchActions(ctx, models.StatusEntityFamily, familyID, models.FamilyStatusAutoActions[next])

	family.Status = &next
	family.StatusChangedAt = &changedAt
	family.StatusChangedBy = &changedBy
	family.StatusChangeReason = req.Reason

	return &ChangeFamilyStatusResponse{Family: family, Impact: impact, ActionsQueued: dispatched}, nil
}

// assessFamilyImpact counts the students and enrollments a family status
// change touches. Counting failures degrade to a zero impact with a warning
// rather than blocking the change.
func (s *StatusService) assessFamilyImpact(ctx context.Context, familyID string, next models.FamilyStatus) *models.StatusChangeImpact {
	impact := &models.StatusChangeImpact{BillingChanges: next == models.FamilyStatusInactive, Warnings: []string{}}

	students, err := s.students.CountActiveByFamily(ctx, familyID)
	if err != nil {
		s.logger.Warn("family impact: student count failed", zap.String("family_id", familyID), zap.Error(err))
		impact.Warnings = append(impact.Warnings, "could not determine affected students")
		return impact
	}
	impact.AffectedStudents = students

	enrollments, err := s.enrollments.CountActiveByFamily(ctx, familyID)
	if err != nil {
		s.logger.Warn("family impact: enrollment count failed", zap.String("family_id", familyID), zap.Error(err))
		impact.Warnings = append(impact.Warnings, "could not determine affected enrollments")
		return impact
	}
	impact.AffectedEnrollments = enrollments

	if next == models.FamilyStatusInactive {
		if students > 0 {
			impact.Warnings = append(impact.Warnings, fmt.Sprintf("%d active student(s) belong to this family", students))
		}
		if enrollments > 0 {
			impact.Warnings = append(impact.Warnings, fmt.Sprintf("%d active enrollment(s) will stop being billed", enrollments))
		}
	}
	return impact
}

// GetStatusHistory returns the most recent transitions for an entity, newest
// first. A read failure is logged and reported as an empty history so the
// surrounding page still renders.
func (s *StatusService) GetStatusHistory(ctx context.Context, entityType models.StatusEntityType, entityID string, limit int) []models.StatusHistoryEntry {
	entries, err := s.history.ListByEntity(ctx, entityType, entityID, limit)
	if err != nil {
		s.logger.Warn("status history read failed",
			zap.String("entity_type", string(entityType)),
			zap.String("entity_id", entityID),
			zap.Error(err))
		return []models.StatusHistoryEntry{}
	}
	if entries == nil {
		entries = []models.StatusHistoryEntry{}
	}
	return entries
}

// appendHistory records a transition. The status write has already committed
// at this point, so failures are logged and swallowed.
func (s *StatusService) appendHistory(ctx context.Context, entry *models.StatusHistoryEntry) {
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Error("status history append failed",
			zap.String("entity_type", string(entry.EntityType)),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err))
	}
}

// dispatchActions runs each configured business action in order. Unknown
// action names and handler errors are logged and skipped; the names of the
// actions that were attempted are returned for the response payload.
func (s *StatusService) dispatchActions(ctx context.Context, entityType models.StatusEntityType, entityID string, names []string) []string {
	dispatched := []string{}
	for _, name := range names {
		handler, ok := s.actions[name]
		if !ok {
			s.logger.Warn("no handler registered for business action", zap.String("action", name))
			continue
		}
		dispatched = append(dispatched, name)
		if err := handler(ctx, entityType, entityID); err != nil {
			s.logger.Error("business action failed",
				zap.String("action", name),
				zap.String("entity_type", string(entityType)),
				zap.String("entity_id", entityID),
				zap.Error(err))
		}
	}
	return dispatched
}
