package workorder

import (
	"context"
	"fmt"

	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/store"
)

// AssignmentAction moves a single technician assignment.
type AssignmentAction string

const (
	AssignmentStart    AssignmentAction = "start"
	AssignmentPause    AssignmentAction = "pause"
	AssignmentResume   AssignmentAction = "resume"
	AssignmentComplete AssignmentAction = "complete"
)

var assignmentMoves = map[AssignmentAction]struct {
	from model.AssignmentStatus
	to   model.AssignmentStatus
}{
	AssignmentStart:    {model.AssignmentNotStarted, model.AssignmentInProgress},
	AssignmentPause:    {model.AssignmentInProgress, model.AssignmentPaused},
	AssignmentResume:   {model.AssignmentPaused, model.AssignmentInProgress},
	AssignmentComplete: {model.AssignmentInProgress, model.AssignmentCompleted},
}

// PlanAssignment returns a after action, or a validation error.
func PlanAssignment(wo model.WorkOrder, a model.TechnicianAssignment, action AssignmentAction, ec execution.Context) (model.TechnicianAssignment, error) {
	move, ok := assignmentMoves[action]
	if !ok {
		return a, reject("unknown assignment action %q", action)
	}
	if wo.State != model.StateAssigned && wo.State != model.StateInProgress {
		return a, reject("cannot %s assignment: work order %s is %s", action, wo.Reference, wo.State)
	}
	if a.Status != move.from {
		return a, reject("cannot %s assignment of %s: it is %s", action, technicianName(a), a.Status)
	}

	now := ec.Now()
	a.Status = move.to
	if action == AssignmentStart && a.StartedAt == nil {
		a.StartedAt = &now
	}
	if action == AssignmentComplete {
		a.CompletedAt = &now
	}
	return a, nil
}

// AddAssignment attaches a technician to an assigned or running work order.
func (s *Service) AddAssignment(ctx context.Context, ec execution.Context, id, technicianID int64, name string) (*model.WorkOrder, error) {
	wo, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if wo.State != model.StateAssigned && wo.State != model.StateInProgress {
		return nil, reject("cannot add a technician: work order %s is %s", wo.Reference, wo.State)
	}
	if hasTechnician(*wo, technicianID) {
		return nil, reject("technician %d is already assigned to %s", technicianID, wo.Reference)
	}

	now := ec.Now()
	audit := model.NewAuditEntry(wo, ec.Actor(), now, "add_assignment", fmt.Sprintf("technician %d", technicianID))
	err = s.store.UpdateWorkOrder(ctx, id, store.WorkOrderUpdate{
		ExpectedState: wo.State,
		BumpVersion:   true,
		NewAssignment: &model.TechnicianAssignment{
			TechnicianID:   technicianID,
			TechnicianName: name,
			Status:         model.AssignmentNotStarted,
			CreatedAt:      now,
		},
		Audit: &audit,
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetWorkOrder(ctx, id)
}

// UpdateAssignment applies action to one of the work order's assignments.
func (s *Service) UpdateAssignment(ctx context.Context, ec execution.Context, id, assignmentID int64, action AssignmentAction) (*model.WorkOrder, error) {
	wo, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	var current *model.TechnicianAssignment
	for i := range wo.Assignments {
		if wo.Assignments[i].ID == assignmentID {
			current = &wo.Assignments[i]
			break
		}
	}
	if current == nil {
		return nil, fmt.Errorf("assignment %d on work order %d: %w", assignmentID, id, store.ErrNotFound)
	}

	next, err := PlanAssignment(*wo, *current, action, ec)
	if err != nil {
		return nil, err
	}
	audit := model.NewAuditEntry(wo, ec.Actor(), ec.Now(), "assignment_"+string(action), technicianName(next))
	if err := s.store.UpdateAssignment(ctx, &next, audit); err != nil {
		return nil, err
	}
	return s.store.GetWorkOrder(ctx, id)
}

// ToggleTask marks a checklist task done or not done.
func (s *Service) ToggleTask(ctx context.Context, ec execution.Context, id, taskID int64, done bool) error {
	wo, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		return err
	}
	if wo.State.Terminal() {
		return reject("cannot edit the checklist: work order %s is %s", wo.Reference, wo.State)
	}
	return s.store.SetTaskDone(ctx, id, taskID, done, ec.Now())
}

func technicianName(a model.TechnicianAssignment) string {
	if a.TechnicianName != "" {
		return a.TechnicianName
	}
	return fmt.Sprintf("technician %d", a.TechnicianID)
}
