package models

import (
	"encoding/json"
	"time"
)

// StatusEntityType identifies which record kind a status change applies to.
type StatusEntityType string

const (
	StatusEntityStudent StatusEntityType = "student"
	StatusEntityFamily  StatusEntityType = "family"
)

// StudentStatus enumerates the student lifecycle states.
type StudentStatus string

const (
	StudentStatusTrial     StudentStatus = "trial"
	StudentStatusWaitlist  StudentStatus = "waitlist"
	StudentStatusActive    StudentStatus = "active"
	StudentStatusOnHold    StudentStatus = "on_hold"
	StudentStatusInactive  StudentStatus = "inactive"
	StudentStatusWithdrawn StudentStatus = "withdrawn"
	StudentStatusGraduated StudentStatus = "graduated"
)

// AllStudentStatuses lists every student status in display order.
var AllStudentStatuses = []StudentStatus{
	StudentStatusTrial,
	StudentStatusWaitlist,
	StudentStatusActive,
	StudentStatusOnHold,
	StudentStatusInactive,
	StudentStatusWithdrawn,
	StudentStatusGraduated,
}

// FamilyStatus enumerates the family lifecycle states. Families only toggle
// between active and inactive, so no transition-rule table exists for them;
// role permissions are the sole gate (see StatusService.ChangeFamilyStatus).
type FamilyStatus string

const (
	FamilyStatusActive   FamilyStatus = "active"
	FamilyStatusInactive FamilyStatus = "inactive"
)

// StatusInfo carries display metadata for a status value.
type StatusInfo struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// StudentStatusInfo maps each student status to its display metadata.
var StudentStatusInfo = map[StudentStatus]StatusInfo{
	StudentStatusTrial:     {Label: "Trial", Description: "Attending trial lessons", Color: "blue"},
	StudentStatusWaitlist:  {Label: "Waitlisted", Description: "Waiting for an open seat", Color: "yellow"},
	StudentStatusActive:    {Label: "Active", Description: "Enrolled and attending", Color: "green"},
	StudentStatusOnHold:    {Label: "On Hold", Description: "Temporarily paused", Color: "orange"},
	StudentStatusInactive:  {Label: "Inactive", Description: "Not currently attending", Color: "gray"},
	StudentStatusWithdrawn: {Label: "Withdrawn", Description: "Left the school", Color: "red"},
	StudentStatusGraduated: {Label: "Graduated", Description: "Completed their program", Color: "purple"},
}

// FamilyStatusInfo maps each family status to its display metadata.
var FamilyStatusInfo = map[FamilyStatus]StatusInfo{
	FamilyStatusActive:   {Label: "Active", Description: "Family account in good standing", Color: "green"},
	FamilyStatusInactive: {Label: "Inactive", Description: "Family account deactivated", Color: "gray"},
}

// Auto-action identifiers dispatched after entering a status.
const (
	ActionSuspendBilling  = "suspend_billing"
	ActionResumeBilling   = "resume_billing"
	ActionPauseBilling    = "pause_billing"
	ActionStopBilling     = "stop_billing"
	ActionNotifyAdmin     = "notify_admin"
	ActionSendWelcomeBack = "send_welcome_back"
	ActionSendFarewell    = "send_farewell"
	ActionSendCongrats    = "send_congratulations"
)

// StatusTransitionRule declares the legal moves out of a status plus the
// requirements and side effects attached to it. RequiresApproval is advisory:
// it is surfaced to callers but no approval workflow enforces it.
type StatusTransitionRule struct {
	AllowedTransitions []StudentStatus `json:"allowed_transitions"`
	RequiresReason     bool            `json:"requires_reason"`
	RequiresApproval   bool            `json:"requires_approval"`
	AutoActions        []string        `json:"auto_actions"`
}

// StudentStatusTransitionRules is the student lifecycle graph. graduated is
// terminal: its allowed set is empty. No status lists itself, so
// self-transitions are always rejected by validation.
var StudentStatusTransitionRules = map[StudentStatus]StatusTransitionRule{
	StudentStatusTrial: {
		AllowedTransitions: []StudentStatus{StudentStatusActive, StudentStatusWaitlist, StudentStatusWithdrawn},
	},
	StudentStatusWaitlist: {
		AllowedTransitions: []StudentStatus{StudentStatusTrial, StudentStatusActive, StudentStatusWithdrawn},
	},
	StudentStatusActive: {
		AllowedTransitions: []StudentStatus{StudentStatusOnHold, StudentStatusInactive, StudentStatusWithdrawn, StudentStatusGraduated},
		RequiresReason:     true,
	},
	StudentStatusOnHold: {
		AllowedTransitions: []StudentStatus{StudentStatusActive, StudentStatusInactive, StudentStatusWithdrawn},
		RequiresReason:     true,
		AutoActions:        []string{ActionPauseBilling, ActionNotifyAdmin},
	},
	StudentStatusInactive: {
		AllowedTransitions: []StudentStatus{StudentStatusActive, StudentStatusWithdrawn},
		RequiresReason:     true,
		AutoActions:        []string{ActionSuspendBilling},
	},
	StudentStatusWithdrawn: {
		AllowedTransitions: []StudentStatus{StudentStatusActive},
		RequiresReason:     true,
		RequiresApproval:   true,
		AutoActions:        []string{ActionSuspendBilling, ActionNotifyAdmin, ActionSendFarewell},
	},
	StudentStatusGraduated: {
		AllowedTransitions: []StudentStatus{},
		AutoActions:        []string{ActionStopBilling, ActionSendCongrats},
	},
}

// FamilyStatusAutoActions maps a family status to the side effects dispatched
// on entering it.
var FamilyStatusAutoActions = map[FamilyStatus][]string{
	FamilyStatusInactive: {ActionSuspendBilling, ActionNotifyAdmin},
	FamilyStatusActive:   {ActionResumeBilling, ActionSendWelcomeBack},
}

// StatusValidationResult reports whether a requested transition is legal.
// RequiresReason and RequiresApproval reflect the rule for the *current*
// status regardless of validity.
type StatusValidationResult struct {
	IsValid            bool            `json:"is_valid"`
	RequiresReason     bool            `json:"requires_reason"`
	RequiresApproval   bool            `json:"requires_approval"`
	AllowedTransitions []StudentStatus `json:"allowed_transitions"`
	ErrorMessage       string          `json:"error_message,omitempty"`
}

// StatusPermissions is the per-(role, entity) capability set. AllowedTransitions
// is the role ceiling; it is intentionally not intersected with the entity's
// rule-based allowed set (the validator applies that at change time).
type StatusPermissions struct {
	CanView            bool            `json:"can_view"`
	CanEdit            bool            `json:"can_edit"`
	AllowedTransitions []StudentStatus `json:"allowed_transitions"`
	RequiresApproval   bool            `json:"requires_approval"`
	RequiresReason     bool            `json:"requires_reason"`
}

type statusPermissionKey struct {
	Role   UserRole
	Entity StatusEntityType
}

// statusPermissionMatrix is the static role x entity capability table. Roles
// absent from the matrix fall through to a locked-down default.
var statusPermissionMatrix = map[statusPermissionKey]StatusPermissions{
	{RoleAdmin, StatusEntityStudent}: {
		CanView:            true,
		CanEdit:            true,
		AllowedTransitions: AllStudentStatuses,
		RequiresReason:     true,
	},
	{RoleAdmin, StatusEntityFamily}: {
		CanView:            true,
		CanEdit:            true,
		AllowedTransitions: []StudentStatus{StudentStatusActive, StudentStatusInactive},
		RequiresReason:     true,
	},
	{RoleTeacher, StatusEntityStudent}: {
		CanView:            true,
		CanEdit:            true,
		AllowedTransitions: []StudentStatus{StudentStatusActive, StudentStatusOnHold, StudentStatusInactive},
		RequiresApproval:   true,
		RequiresReason:     true,
	},
	{RoleTeacher, StatusEntityFamily}: {
		CanView: true,
	},
	{RoleParent, StatusEntityStudent}: {
		CanView:            true,
		AllowedTransitions: []StudentStatus{},
	},
	{RoleParent, StatusEntityFamily}: {
		CanView:            true,
		AllowedTransitions: []StudentStatus{},
	},
	{RoleStudent, StatusEntityStudent}: {
		CanView:            true,
		AllowedTransitions: []StudentStatus{},
	},
	{RoleStudent, StatusEntityFamily}: {
		CanView:            false,
		AllowedTransitions: []StudentStatus{},
	},
}

// StatusPermissionsFor resolves the capability set for a role and entity type.
// Unknown roles receive a fully locked-down permission object.
func StatusPermissionsFor(role UserRole, entity StatusEntityType) StatusPermissions {
	if perms, ok := statusPermissionMatrix[statusPermissionKey{role, entity}]; ok {
		if perms.AllowedTransitions == nil {
			perms.AllowedTransitions = []StudentStatus{}
		}
		return perms
	}
	return StatusPermissions{AllowedTransitions: []StudentStatus{}}
}

// StatusHistoryEntry is one immutable record of a status transition.
// OldStatus is nil only for the first recorded transition of an entity.
type StatusHistoryEntry struct {
	ID           string           `db:"id" json:"id"`
	EntityType   StatusEntityType `db:"entity_type" json:"entity_type"`
	EntityID     string           `db:"entity_id" json:"entity_id"`
	OldStatus    *string          `db:"old_status" json:"old_status,omitempty"`
	NewStatus    string           `db:"new_status" json:"new_status"`
	ChangedBy    string           `db:"changed_by" json:"changed_by"`
	ChangeReason *string          `db:"change_reason" json:"change_reason,omitempty"`
	ChangedAt    time.Time        `db:"changed_at" json:"changed_at"`
	Metadata     json.RawMessage  `db:"metadata" json:"metadata,omitempty"`
}

// StatusChangeImpact summarises how many dependent records a family status
// change touches. Returned to the caller so the UI can surface warnings.
type StatusChangeImpact struct {
	AffectedStudents    int      `json:"affected_students"`
	AffectedEnrollments int      `json:"affected_enrollments"`
	BillingChanges      bool     `json:"billing_changes"`
	Warnings            []string `json:"warnings"`
}
