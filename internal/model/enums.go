package model

// MaintenanceKind classifies both schedules and the work orders they produce.
type MaintenanceKind string

const (
	KindPreventive MaintenanceKind = "preventive"
	KindCorrective MaintenanceKind = "corrective"
	KindPredictive MaintenanceKind = "predictive"
	KindInspection MaintenanceKind = "inspection"
)

// Valid reports whether k is a known maintenance kind.
func (k MaintenanceKind) Valid() bool {
	switch k {
	case KindPreventive, KindCorrective, KindPredictive, KindInspection:
		return true
	}
	return false
}

// Priority of a work order. The empty priority on an SLA policy matches any.
type Priority string

const (
	PriorityVeryLow  Priority = "very_low"
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityVeryLow, PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// IntervalUnit is the calendar unit of a schedule's recurrence.
type IntervalUnit string

const (
	UnitDay     IntervalUnit = "day"
	UnitWeek    IntervalUnit = "week"
	UnitMonth   IntervalUnit = "month"
	UnitQuarter IntervalUnit = "quarter"
	UnitYear    IntervalUnit = "year"
)

// Valid reports whether u is a known interval unit.
func (u IntervalUnit) Valid() bool {
	switch u {
	case UnitDay, UnitWeek, UnitMonth, UnitQuarter, UnitYear:
		return true
	}
	return false
}

// ScheduleKind says whether a schedule targets one asset or a location subtree.
type ScheduleKind string

const (
	ScheduleAsset    ScheduleKind = "asset"
	ScheduleLocation ScheduleKind = "location"
)

// ScheduleStatus is the lifecycle status of a maintenance schedule.
type ScheduleStatus string

const (
	ScheduleDraft      ScheduleStatus = "draft"
	SchedulePlanned    ScheduleStatus = "planned"
	ScheduleInProgress ScheduleStatus = "in_progress"
	ScheduleDone       ScheduleStatus = "done"
	ScheduleCancelled  ScheduleStatus = "cancelled"
)

// WorkOrderState is the execution state of a work order.
type WorkOrderState string

const (
	StateDraft      WorkOrderState = "draft"
	StateAssigned   WorkOrderState = "assigned"
	StateInProgress WorkOrderState = "in_progress"
	StateOnHold     WorkOrderState = "on_hold"
	StateCompleted  WorkOrderState = "completed"
	StateCancelled  WorkOrderState = "cancelled"
)

// Terminal reports whether no further transition may leave s.
func (s WorkOrderState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// TerminalStates are the states excluded from open-work queries.
var TerminalStates = []WorkOrderState{StateCompleted, StateCancelled}

// ApprovalState is tracked independently of the execution state.
type ApprovalState string

const (
	ApprovalDraft      ApprovalState = "draft"
	ApprovalSubmitted  ApprovalState = "submitted"
	ApprovalSupervisor ApprovalState = "supervisor"
	ApprovalManager    ApprovalState = "manager"
	ApprovalApproved   ApprovalState = "approved"
	ApprovalRefused    ApprovalState = "refused"
	ApprovalCancelled  ApprovalState = "cancelled"
	ApprovalEscalated  ApprovalState = "escalated"
)

// HoldApproval is the sign-off status of a pending on-hold request.
type HoldApproval string

const (
	HoldNone     HoldApproval = "none"
	HoldPending  HoldApproval = "pending"
	HoldApproved HoldApproval = "approved"
	HoldRejected HoldApproval = "rejected"
)

// HoldReasons are the accepted reason codes for putting work on hold.
var HoldReasons = []string{
	"waiting_materials",
	"waiting_parts",
	"waiting_tools",
	"waiting_permits",
	"weather_conditions",
	"safety_concerns",
	"resource_unavailable",
	"technical_issues",
	"customer_request",
	"other",
}

// AssignmentStatus is the sub-status of a single technician assignment.
type AssignmentStatus string

const (
	AssignmentNotStarted AssignmentStatus = "not_started"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentPaused     AssignmentStatus = "paused"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// EscalationKind names the condition that fired an escalation.
type EscalationKind string

const (
	EscalationResponseBreach   EscalationKind = "response_breach"
	EscalationResolutionBreach EscalationKind = "resolution_breach"
	EscalationWarning          EscalationKind = "warning"
	EscalationProgressive      EscalationKind = "progressive"
)

// EscalationStatus is the resolution status of an escalation log entry.
type EscalationStatus string

const (
	EscalationOpen       EscalationStatus = "open"
	EscalationInProgress EscalationStatus = "in_progress"
	EscalationResolved   EscalationStatus = "resolved"
)

// Roles understood by the escalation recipient fallback and approvals.
const (
	RoleTechnician = "facility_technician"
	RoleSupervisor = "facility_supervisor"
	RoleManager    = "facility_manager"
	RoleDirector   = "facility_director"
	RoleAdmin      = "admin"
)
