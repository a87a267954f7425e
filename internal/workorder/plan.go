// Package workorder implements the work order lifecycle: creation with SLA
// deadlines, the state machine, approvals and technician assignments.
package workorder

import (
	"slices"
	"strings"

	"gorm.io/gorm"

	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/model"
)

// Action names a lifecycle or approval step.
type Action string

const (
	ActionAssign      Action = "assign"
	ActionStart       Action = "start"
	ActionHold        Action = "hold"
	ActionRequestHold Action = "request_hold"
	ActionApproveHold Action = "approve_hold"
	ActionRejectHold  Action = "reject_hold"
	ActionResume      Action = "resume"
	ActionComplete    Action = "complete"
	ActionCancel      Action = "cancel"

	ActionSubmit            Action = "submit"
	ActionSupervisorApprove Action = "supervisor_approve"
	ActionManagerApprove    Action = "manager_approve"
	ActionApprove           Action = "approve"
	ActionRefuse            Action = "refuse"
	ActionResetApproval     Action = "reset_approval"
	ActionEscalate          Action = "escalate"
)

// Params carries the optional inputs of an action.
type Params struct {
	Reason       string `json:"reason"`
	Comment      string `json:"comment"`
	AssigneeID   *int64 `json:"assignee_id"`
	AssigneeName string `json:"assignee_name"`
}

// Change is the outcome of planning an action against a snapshot.
type Change struct {
	Action Action
	From   model.WorkOrderState
	To     model.WorkOrderState
	Fields map[string]any
	// NewAssignment is inserted alongside Fields.
	NewAssignment *model.TechnicianAssignment
	Note          string
	// ResolvesEscalations marks the open escalation entries resolved.
	ResolvesEscalations bool
}

// Transitions is the legal execution-state table.
var Transitions = map[model.WorkOrderState][]model.WorkOrderState{
	model.StateDraft:      {model.StateAssigned, model.StateCancelled},
	model.StateAssigned:   {model.StateInProgress, model.StateCancelled},
	model.StateInProgress: {model.StateOnHold, model.StateCompleted, model.StateCancelled},
	model.StateOnHold:     {model.StateInProgress, model.StateCancelled},
}

// CanTransition reports whether from→to is in the legal table.
func CanTransition(from, to model.WorkOrderState) bool {
	return slices.Contains(Transitions[from], to)
}

var managerRoles = []string{model.RoleManager, model.RoleAdmin}
var supervisorRoles = []string{model.RoleSupervisor, model.RoleManager, model.RoleAdmin}

// Plan validates action against the snapshot wo and returns the field changes
// it implies. It does not touch storage.
func Plan(wo model.WorkOrder, action Action, p Params, ec execution.Context) (*Change, error) {
	now := ec.Now()
	c := &Change{Action: action, From: wo.State, To: wo.State, Fields: map[string]any{}}

	if wo.State.Terminal() {
		return nil, reject("cannot %s: work order %s is %s", verb(action), wo.Reference, wo.State)
	}

	switch action {
	case ActionAssign:
		if err := requireState(wo, action, model.StateDraft); err != nil {
			return nil, err
		}
		if len(wo.Assignments) == 0 && p.AssigneeID == nil {
			return nil, reject("cannot assign: work order %s has no technician", wo.Reference)
		}
		if p.AssigneeID != nil && !hasTechnician(wo, *p.AssigneeID) {
			c.NewAssignment = &model.TechnicianAssignment{
				TechnicianID:   *p.AssigneeID,
				TechnicianName: p.AssigneeName,
				Status:         model.AssignmentNotStarted,
				CreatedAt:      now,
			}
		}
		c.To = model.StateAssigned

	case ActionStart:
		if err := requireState(wo, action, model.StateAssigned); err != nil {
			return nil, err
		}
		c.To = model.StateInProgress
		if wo.ActualStart == nil {
			c.Fields["actual_start"] = now
		}

	case ActionHold:
		if err := requireState(wo, action, model.StateInProgress); err != nil {
			return nil, err
		}
		if err := validReason(p.Reason); err != nil {
			return nil, err
		}
		c.To = model.StateOnHold
		c.Fields["hold_reason"] = p.Reason
		c.Fields["hold_comment"] = p.Comment
		c.Note = p.Reason

	case ActionRequestHold:
		if err := requireState(wo, action, model.StateInProgress); err != nil {
			return nil, err
		}
		if wo.HoldApproval == model.HoldPending {
			return nil, reject("cannot request hold: a hold request for %s is already pending", wo.Reference)
		}
		if err := validReason(p.Reason); err != nil {
			return nil, err
		}
		c.Fields["hold_reason"] = p.Reason
		c.Fields["hold_comment"] = p.Comment
		c.Fields["hold_approval"] = model.HoldPending
		c.Note = p.Reason

	case ActionApproveHold, ActionRejectHold:
		if err := requireState(wo, action, model.StateInProgress); err != nil {
			return nil, err
		}
		if wo.HoldApproval != model.HoldPending {
			return nil, reject("cannot %s: no hold request is pending on %s", verb(action), wo.Reference)
		}
		if !ec.HasRole(managerRoles...) {
			return nil, reject("cannot %s: manager sign-off is required", verb(action))
		}
		if action == ActionApproveHold {
			c.To = model.StateOnHold
			c.Fields["hold_approval"] = model.HoldApproved
		} else {
			c.Fields["hold_approval"] = model.HoldRejected
			c.Fields["hold_reason"] = ""
			c.Fields["hold_comment"] = ""
		}
		c.Note = p.Comment

	case ActionResume:
		if err := requireState(wo, action, model.StateOnHold); err != nil {
			return nil, err
		}
		c.To = model.StateInProgress
		c.Fields["hold_reason"] = ""
		c.Fields["hold_comment"] = ""
		c.Fields["hold_approval"] = model.HoldNone

	case ActionComplete:
		if err := requireState(wo, action, model.StateInProgress); err != nil {
			return nil, err
		}
		if open := wo.IncompleteAssignments(); len(open) > 0 {
			return nil, incompleteError(open)
		}
		c.To = model.StateCompleted
		if wo.ActualStart == nil {
			c.Fields["actual_start"] = now
		}
		if wo.ActualEnd == nil {
			c.Fields["actual_end"] = now
		}
		c.Fields["approval_state"] = model.ApprovalApproved
		c.ResolvesEscalations = true

	case ActionCancel:
		c.To = model.StateCancelled
		c.Fields["approval_state"] = model.ApprovalCancelled
		c.Note = p.Comment
		c.ResolvesEscalations = true

	case ActionSubmit:
		if err := requireApproval(wo, action, model.ApprovalDraft, model.ApprovalRefused); err != nil {
			return nil, err
		}
		c.Fields["approval_state"] = model.ApprovalSubmitted

	case ActionSupervisorApprove:
		if err := approver(wo, action, ec, supervisorRoles, model.ApprovalSubmitted); err != nil {
			return nil, err
		}
		c.Fields["approval_state"] = model.ApprovalSupervisor

	case ActionManagerApprove:
		if err := approver(wo, action, ec, managerRoles, model.ApprovalSubmitted, model.ApprovalSupervisor); err != nil {
			return nil, err
		}
		c.Fields["approval_state"] = model.ApprovalManager

	case ActionApprove:
		if err := approver(wo, action, ec, managerRoles, model.ApprovalSubmitted, model.ApprovalSupervisor, model.ApprovalManager, model.ApprovalEscalated); err != nil {
			return nil, err
		}
		c.Fields["approval_state"] = model.ApprovalApproved

	case ActionRefuse:
		if err := approver(wo, action, ec, supervisorRoles, model.ApprovalSubmitted, model.ApprovalSupervisor, model.ApprovalManager, model.ApprovalEscalated); err != nil {
			return nil, err
		}
		c.Fields["approval_state"] = model.ApprovalRefused
		c.Note = p.Comment

	case ActionResetApproval:
		if wo.ApprovalState == model.ApprovalDraft {
			return nil, reject("cannot reset approval: %s is already a draft", wo.Reference)
		}
		c.Fields["approval_state"] = model.ApprovalDraft

	case ActionEscalate:
		if err := requireApproval(wo, action, model.ApprovalDraft, model.ApprovalSubmitted, model.ApprovalSupervisor, model.ApprovalManager); err != nil {
			return nil, err
		}
		c.Fields["approval_state"] = model.ApprovalEscalated
		c.Fields["escalation_count"] = gorm.Expr("escalation_count + ?", 1)
		c.Note = p.Comment

	default:
		return nil, reject("unknown action %q", action)
	}

	if c.To != c.From {
		if !CanTransition(c.From, c.To) {
			return nil, reject("cannot %s: %s to %s is not allowed", verb(action), c.From, c.To)
		}
		c.Fields["state"] = c.To
	}
	return c, nil
}

func requireState(wo model.WorkOrder, action Action, want model.WorkOrderState) error {
	if wo.State != want {
		return reject("cannot %s: work order %s is %s, not %s", verb(action), wo.Reference, wo.State, want)
	}
	return nil
}

func requireApproval(wo model.WorkOrder, action Action, allowed ...model.ApprovalState) error {
	if !slices.Contains(allowed, wo.ApprovalState) {
		return reject("cannot %s: approval of %s is %s", verb(action), wo.Reference, wo.ApprovalState)
	}
	return nil
}

func approver(wo model.WorkOrder, action Action, ec execution.Context, roles []string, allowed ...model.ApprovalState) error {
	if err := requireApproval(wo, action, allowed...); err != nil {
		return err
	}
	if !ec.HasRole(roles...) {
		return reject("cannot %s: requires one of the roles %s", verb(action), strings.Join(roles, ", "))
	}
	return nil
}

func validReason(reason string) error {
	if reason == "" {
		return reject("a hold reason is required")
	}
	if !slices.Contains(model.HoldReasons, reason) {
		return reject("unknown hold reason %q", reason)
	}
	return nil
}

func hasTechnician(wo model.WorkOrder, technicianID int64) bool {
	for _, a := range wo.Assignments {
		if a.TechnicianID == technicianID {
			return true
		}
	}
	return false
}

func incompleteError(open []model.TechnicianAssignment) error {
	names := make([]string, 0, len(open))
	for _, a := range open {
		names = append(names, technicianName(a))
	}
	noun := "assignment"
	if len(open) > 1 {
		noun = "assignments"
	}
	return reject("cannot complete: %d technician %s still in progress (%s)", len(open), noun, strings.Join(names, ", "))
}

func verb(a Action) string {
	return strings.ReplaceAll(string(a), "_", " ")
}
