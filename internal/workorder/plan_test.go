package workorder

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/model"
)

var planNow = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

func managerCtx() execution.Context {
	return execution.Context{ActorID: 7, Roles: []string{model.RoleManager}, Clock: execution.FixedClock{T: planNow}}
}

func technicianCtx() execution.Context {
	return execution.Context{ActorID: 8, Roles: []string{model.RoleTechnician}, Clock: execution.FixedClock{T: planNow}}
}

func snapshot(state model.WorkOrderState) model.WorkOrder {
	return model.WorkOrder{
		ID:            1,
		Reference:     "WO-2024-00001",
		State:         state,
		ApprovalState: model.ApprovalDraft,
		HoldApproval:  model.HoldNone,
	}
}

var allActions = []Action{
	ActionAssign, ActionStart, ActionHold, ActionRequestHold, ActionApproveHold, ActionRejectHold,
	ActionResume, ActionComplete, ActionCancel,
	ActionSubmit, ActionSupervisorApprove, ActionManagerApprove, ActionApprove, ActionRefuse,
	ActionResetApproval, ActionEscalate,
}

var allStates = []model.WorkOrderState{
	model.StateDraft, model.StateAssigned, model.StateInProgress,
	model.StateOnHold, model.StateCompleted, model.StateCancelled,
}

func TestPlan_Closure(t *testing.T) {
	params := Params{Reason: "waiting_parts", AssigneeID: ptr(int64(3))}
	variants := map[string]func(*model.WorkOrder){
		"plain": func(*model.WorkOrder) {},
		"pending hold": func(wo *model.WorkOrder) {
			wo.HoldApproval = model.HoldPending
		},
		"completed assignment": func(wo *model.WorkOrder) {
			wo.Assignments = []model.TechnicianAssignment{{TechnicianID: 3, Status: model.AssignmentCompleted}}
		},
	}

	for _, state := range allStates {
		for name, mutate := range variants {
			for _, action := range allActions {
				wo := snapshot(state)
				mutate(&wo)
				change, err := Plan(wo, action, params, managerCtx())
				if err != nil {
					var verr *ValidationError
					assert.True(t, errors.As(err, &verr), "%s/%s/%s: %v", state, name, action, err)
					continue
				}
				if change.To != state {
					assert.True(t, slices.Contains(Transitions[state], change.To),
						"%s/%s: %s produced illegal %s", state, name, action, change.To)
					assert.Equal(t, change.To, change.Fields["state"])
				}
				assert.False(t, state.Terminal(), "%s accepted %s", state, action)
			}
		}
	}
}

func TestPlan_Lifecycle(t *testing.T) {
	testCases := []struct {
		name    string
		wo      func() model.WorkOrder
		action  Action
		params  Params
		ec      execution.Context
		want    model.WorkOrderState
		wantErr string
	}{
		{
			name:    "assign needs a technician",
			wo:      func() model.WorkOrder { return snapshot(model.StateDraft) },
			action:  ActionAssign,
			ec:      managerCtx(),
			wantErr: "cannot assign: work order WO-2024-00001 has no technician",
		},
		{
			name:   "assign with assignee",
			wo:     func() model.WorkOrder { return snapshot(model.StateDraft) },
			action: ActionAssign,
			params: Params{AssigneeID: ptr(int64(4))},
			ec:     managerCtx(),
			want:   model.StateAssigned,
		},
		{
			name:    "start from draft is illegal",
			wo:      func() model.WorkOrder { return snapshot(model.StateDraft) },
			action:  ActionStart,
			ec:      managerCtx(),
			wantErr: "cannot start: work order WO-2024-00001 is draft, not assigned",
		},
		{
			name:   "start stamps actual start",
			wo:     func() model.WorkOrder { return snapshot(model.StateAssigned) },
			action: ActionStart,
			ec:     technicianCtx(),
			want:   model.StateInProgress,
		},
		{
			name:    "hold requires reason",
			wo:      func() model.WorkOrder { return snapshot(model.StateInProgress) },
			action:  ActionHold,
			ec:      technicianCtx(),
			wantErr: "a hold reason is required",
		},
		{
			name:    "hold rejects unknown reason",
			wo:      func() model.WorkOrder { return snapshot(model.StateInProgress) },
			action:  ActionHold,
			params:  Params{Reason: "lunch"},
			ec:      technicianCtx(),
			wantErr: `unknown hold reason "lunch"`,
		},
		{
			name:   "hold",
			wo:     func() model.WorkOrder { return snapshot(model.StateInProgress) },
			action: ActionHold,
			params: Params{Reason: "waiting_materials"},
			ec:     technicianCtx(),
			want:   model.StateOnHold,
		},
		{
			name:   "request hold keeps state",
			wo:     func() model.WorkOrder { return snapshot(model.StateInProgress) },
			action: ActionRequestHold,
			params: Params{Reason: "weather_conditions"},
			ec:     technicianCtx(),
			want:   model.StateInProgress,
		},
		{
			name: "approve hold needs a manager",
			wo: func() model.WorkOrder {
				wo := snapshot(model.StateInProgress)
				wo.HoldApproval = model.HoldPending
				return wo
			},
			action:  ActionApproveHold,
			ec:      technicianCtx(),
			wantErr: "cannot approve hold: manager sign-off is required",
		},
		{
			name: "approve hold",
			wo: func() model.WorkOrder {
				wo := snapshot(model.StateInProgress)
				wo.HoldApproval = model.HoldPending
				return wo
			},
			action: ActionApproveHold,
			ec:     managerCtx(),
			want:   model.StateOnHold,
		},
		{
			name: "complete with open assignments",
			wo: func() model.WorkOrder {
				wo := snapshot(model.StateInProgress)
				wo.Assignments = []model.TechnicianAssignment{
					{TechnicianName: "alice", Status: model.AssignmentInProgress},
					{TechnicianName: "carol", Status: model.AssignmentCompleted},
					{TechnicianName: "bob", Status: model.AssignmentPaused},
				}
				return wo
			},
			action:  ActionComplete,
			ec:      technicianCtx(),
			wantErr: "cannot complete: 2 technician assignments still in progress (alice, bob)",
		},
		{
			name:    "completed is terminal",
			wo:      func() model.WorkOrder { return snapshot(model.StateCompleted) },
			action:  ActionCancel,
			ec:      managerCtx(),
			wantErr: "cannot cancel: work order WO-2024-00001 is completed",
		},
		{
			name:   "cancel on hold",
			wo:     func() model.WorkOrder { return snapshot(model.StateOnHold) },
			action: ActionCancel,
			ec:     managerCtx(),
			want:   model.StateCancelled,
		},
		{
			name:    "unknown action",
			wo:      func() model.WorkOrder { return snapshot(model.StateDraft) },
			action:  "reopen",
			ec:      managerCtx(),
			wantErr: `unknown action "reopen"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			change, err := Plan(tc.wo(), tc.action, tc.params, tc.ec)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr, err.Error())
				assert.Nil(t, change)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, change.To)
		})
	}
}

func TestPlan_CompleteStampsTimes(t *testing.T) {
	wo := snapshot(model.StateInProgress)
	wo.Assignments = []model.TechnicianAssignment{{TechnicianName: "alice", Status: model.AssignmentCompleted}}

	change, err := Plan(wo, ActionComplete, Params{}, technicianCtx())
	require.NoError(t, err)
	assert.Equal(t, planNow, change.Fields["actual_start"])
	assert.Equal(t, planNow, change.Fields["actual_end"])
	assert.Equal(t, model.ApprovalApproved, change.Fields["approval_state"])
	assert.True(t, change.ResolvesEscalations)

	started := planNow.Add(-time.Hour)
	wo.ActualStart = &started
	change, err = Plan(wo, ActionComplete, Params{}, technicianCtx())
	require.NoError(t, err)
	assert.NotContains(t, change.Fields, "actual_start")
}

func TestPlan_Approvals(t *testing.T) {
	wo := snapshot(model.StateInProgress)

	_, err := Plan(wo, ActionApprove, Params{}, managerCtx())
	assert.EqualError(t, err, "cannot approve: approval of WO-2024-00001 is draft")

	change, err := Plan(wo, ActionSubmit, Params{}, technicianCtx())
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalSubmitted, change.Fields["approval_state"])
	assert.NotContains(t, change.Fields, "state")

	wo.ApprovalState = model.ApprovalSubmitted
	_, err = Plan(wo, ActionSupervisorApprove, Params{}, technicianCtx())
	assert.Error(t, err)

	change, err = Plan(wo, ActionEscalate, Params{}, technicianCtx())
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalEscalated, change.Fields["approval_state"])
	assert.Contains(t, change.Fields, "escalation_count")
}

func TestPlanAssignment(t *testing.T) {
	wo := snapshot(model.StateInProgress)
	a := model.TechnicianAssignment{TechnicianName: "alice", Status: model.AssignmentNotStarted}

	a, err := PlanAssignment(wo, a, AssignmentStart, technicianCtx())
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentInProgress, a.Status)
	require.NotNil(t, a.StartedAt)

	_, err = PlanAssignment(wo, a, AssignmentResume, technicianCtx())
	assert.EqualError(t, err, "cannot resume assignment of alice: it is in_progress")

	a, err = PlanAssignment(wo, a, AssignmentComplete, technicianCtx())
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentCompleted, a.Status)

	_, err = PlanAssignment(snapshot(model.StateOnHold), a, AssignmentPause, technicianCtx())
	assert.Error(t, err)
}

func ptr[T any](v T) *T { return &v }
