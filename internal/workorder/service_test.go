package workorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/sla"
	"facilities-maintenance-backend/internal/store"
	"facilities-maintenance-backend/internal/store/storetest"
)

var created = time.Date(2024, 2, 5, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store    store.Store
	svc      *Service
	generic  model.SLAPolicy
	critical model.SLAPolicy
}

func newFixture(t *testing.T, withPolicies bool) *fixture {
	t.Helper()
	st := storetest.New(t)
	db := st.DB()

	require.NoError(t, db.Create(&model.Facility{ID: 1, Name: "HQ"}).Error)
	require.NoError(t, db.Create(&model.Building{ID: 10, FacilityID: 1, Name: "North"}).Error)
	require.NoError(t, db.Create(&model.Floor{ID: 20, BuildingID: 10, Name: "2"}).Error)
	require.NoError(t, db.Create(&model.Room{ID: 30, FloorID: 20, Name: "201"}).Error)
	require.NoError(t, db.Create(&model.Asset{ID: 102, Name: "AHU-102", RoomID: storetest.Ptr(int64(30)), Active: true}).Error)
	require.NoError(t, db.Create(&model.Asset{ID: 103, Name: "Pump-103", FacilityID: storetest.Ptr(int64(1)), Active: true}).Error)

	f := &fixture{store: st, svc: NewService(st, sla.NewCalculator(time.UTC, nil), 2)}
	if withPolicies {
		f.generic = model.SLAPolicy{Name: "Standard", Active: true, ResponseHours: 4, ResolutionHours: 24, WarningHours: 2, MaxEscalationLevel: 3}
		f.critical = model.SLAPolicy{Name: "HQ critical", Active: true, Priority: model.PriorityCritical, ResponseHours: 1, ResolutionHours: 4, WarningHours: 1, MaxEscalationLevel: 3}
		audit := model.AuditEntry{Action: "create", At: created}
		require.NoError(t, st.SavePolicy(context.Background(), &f.generic, nil, nil, audit))
		require.NoError(t, st.SavePolicy(context.Background(), &f.critical, []int64{1}, nil, audit))
	}
	return f
}

func at(t time.Time) execution.Context {
	return execution.Context{ActorID: 7, Roles: []string{model.RoleManager}, Clock: execution.FixedClock{T: t}}
}

func (f *fixture) create(t *testing.T, priority model.Priority) *model.WorkOrder {
	t.Helper()
	wo, err := f.svc.Create(context.Background(), at(created), Draft{
		Title:    "Replace belt",
		AssetID:  storetest.Ptr(int64(102)),
		Kind:     model.KindCorrective,
		Priority: priority,
	})
	require.NoError(t, err)
	return wo
}

func TestService_CreateResolvesLocationAndSLA(t *testing.T) {
	f := newFixture(t, true)

	wo := f.create(t, model.PriorityCritical)
	assert.Equal(t, "WO-2024-00001", wo.Reference)
	assert.Equal(t, model.StateDraft, wo.State)
	require.NotNil(t, wo.FacilityID)
	assert.Equal(t, int64(1), *wo.FacilityID)
	assert.Equal(t, int64(10), *wo.BuildingID)
	require.NotNil(t, wo.SLAPolicyID)
	assert.Equal(t, f.critical.ID, *wo.SLAPolicyID)
	assert.True(t, wo.ResolutionDeadline.Equal(created.Add(4*time.Hour)))
	assert.True(t, wo.ResponseDeadline.Equal(created.Add(time.Hour)))

	normal := f.create(t, model.PriorityNormal)
	assert.Equal(t, f.generic.ID, *normal.SLAPolicyID)
}

func TestService_CreateWithoutPolicy(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Create(context.Background(), at(created), Draft{
		Title:    "Replace belt",
		AssetID:  storetest.Ptr(int64(102)),
		Kind:     model.KindCorrective,
		Priority: model.PriorityHigh,
	})
	assert.ErrorIs(t, err, sla.ErrNoActivePolicy)

	var n int64
	require.NoError(t, f.store.DB().Model(&model.WorkOrder{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	testCases := []struct {
		name  string
		draft Draft
		want  string
	}{
		{"no subject", Draft{Title: "x", Kind: model.KindCorrective, Priority: model.PriorityLow}, "an asset or a location is required"},
		{"schedule must be preventive", Draft{Title: "x", AssetID: storetest.Ptr(int64(102)), ScheduleID: storetest.Ptr(int64(1)), Kind: model.KindCorrective, Priority: model.PriorityLow}, "work orders generated from a schedule must be preventive"},
		{"bad priority", Draft{Title: "x", AssetID: storetest.Ptr(int64(102)), Kind: model.KindCorrective, Priority: "urgent"}, `unknown priority "urgent"`},
		{"missing asset", Draft{Title: "x", AssetID: storetest.Ptr(int64(999)), Kind: model.KindCorrective, Priority: model.PriorityLow}, "asset 999 does not exist"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, at(created), tc.draft)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.want, verr.Reason)
		})
	}
}

func TestService_LifecycleToCompletion(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	wo := f.create(t, model.PriorityCritical)

	wo, err := f.svc.Transition(ctx, at(created), wo.ID, ActionAssign, Params{AssigneeID: storetest.Ptr(int64(5)), AssigneeName: "alice"})
	require.NoError(t, err)
	assert.Equal(t, model.StateAssigned, wo.State)
	require.Len(t, wo.Assignments, 1)

	wo, err = f.svc.Transition(ctx, at(created.Add(time.Hour)), wo.ID, ActionStart, Params{})
	require.NoError(t, err)
	require.NotNil(t, wo.ActualStart)

	_, err = f.svc.Transition(ctx, at(created.Add(2*time.Hour)), wo.ID, ActionComplete, Params{})
	assert.EqualError(t, err, "cannot complete: 1 technician assignment still in progress (alice)")

	applied, err := f.store.ApplyEscalation(ctx, wo.ID, 0, &model.EscalationLogEntry{
		Level: 1, Kind: model.EscalationWarning, Reason: "warning", Status: model.EscalationOpen,
		DeliveryKey: "k", EscalatedAt: created.Add(3 * time.Hour),
	}, model.AuditEntry{Action: "escalate", At: created.Add(3 * time.Hour)})
	require.NoError(t, err)
	require.True(t, applied)

	assignment := wo.Assignments[0].ID
	_, err = f.svc.UpdateAssignment(ctx, at(created.Add(time.Hour)), wo.ID, assignment, AssignmentStart)
	require.NoError(t, err)
	_, err = f.svc.UpdateAssignment(ctx, at(created.Add(3*time.Hour)), wo.ID, assignment, AssignmentComplete)
	require.NoError(t, err)

	wo, err = f.svc.Transition(ctx, at(created.Add(3*time.Hour)), wo.ID, ActionComplete, Params{})
	require.NoError(t, err)
	assert.Equal(t, model.StateCompleted, wo.State)
	assert.Equal(t, model.ApprovalApproved, wo.ApprovalState)
	require.NotNil(t, wo.ActualEnd)
	assert.Equal(t, 3, wo.Version)

	history, err := f.svc.History(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.EscalationResolved, history[0].Status)
	require.NotNil(t, history[0].ResolvedByID)
	assert.Equal(t, int64(7), *history[0].ResolvedByID)

	_, err = f.svc.Transition(ctx, at(created.Add(4*time.Hour)), wo.ID, ActionCancel, Params{})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	trail, err := f.store.AuditTrail(ctx, wo)
	require.NoError(t, err)
	actions := make([]string, 0, len(trail))
	for _, e := range trail {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"create", "assign", "start", "assignment_start", "escalate", "assignment_complete", "complete"}, actions)
}

func TestService_UpdateFields(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	wo := f.create(t, model.PriorityNormal)
	require.Equal(t, f.generic.ID, *wo.SLAPolicyID)

	_, err := f.svc.UpdateFields(ctx, at(created), wo.ID, FieldChange{SLAPolicyID: storetest.Ptr(f.critical.ID)})
	assert.EqualError(t, err, "the SLA policy is assigned automatically and cannot be edited")

	critical := model.PriorityCritical
	later := created.Add(30 * time.Minute)
	wo, err = f.svc.UpdateFields(ctx, at(later), wo.ID, FieldChange{Priority: &critical})
	require.NoError(t, err)
	assert.Equal(t, f.critical.ID, *wo.SLAPolicyID)
	assert.True(t, wo.ResolutionDeadline.Equal(created.Add(4*time.Hour)), "deadlines are measured from creation")

	wo, err = f.svc.UpdateFields(ctx, at(later), wo.ID, FieldChange{AssetID: storetest.Ptr(int64(103))})
	require.NoError(t, err)
	assert.Equal(t, int64(103), *wo.AssetID)
	assert.Nil(t, wo.RoomID)

	_, err = f.svc.Transition(ctx, at(later), wo.ID, ActionAssign, Params{AssigneeID: storetest.Ptr(int64(5))})
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, at(later), wo.ID, ActionStart, Params{})
	require.NoError(t, err)

	_, err = f.svc.UpdateFields(ctx, at(later), wo.ID, FieldChange{AssetID: storetest.Ptr(int64(102))})
	assert.EqualError(t, err, "cannot change the asset of a work order that is in_progress")
}

func TestService_RecalculateSLA(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	wo := f.create(t, model.PriorityCritical)

	// A more specific, higher ranked policy appears after creation.
	better := model.SLAPolicy{Name: "HQ critical v2", Active: true, Rank: 10, Priority: model.PriorityCritical, ResponseHours: 2, ResolutionHours: 8, MaxEscalationLevel: 3}
	require.NoError(t, f.store.SavePolicy(ctx, &better, []int64{1}, nil, model.AuditEntry{Action: "create", At: created}))

	wo, err := f.svc.RecalculateSLA(ctx, at(created.Add(time.Hour)), wo.ID)
	require.NoError(t, err)
	assert.Equal(t, better.ID, *wo.SLAPolicyID)
	assert.True(t, wo.ResolutionDeadline.Equal(created.Add(8*time.Hour)))
}

func TestService_InspectStampsBreach(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	wo := f.create(t, model.PriorityCritical)

	_, report, err := f.svc.Inspect(ctx, at(created.Add(3*time.Hour+30*time.Minute)), wo.ID)
	require.NoError(t, err)
	assert.Equal(t, sla.StatusBreached, report.Response)
	assert.Equal(t, sla.StatusAtRisk, report.Resolution)

	breachAt := created.Add(5 * time.Hour)
	got, report, err := f.svc.Inspect(ctx, at(breachAt), wo.ID)
	require.NoError(t, err)
	assert.Equal(t, sla.StatusBreached, report.Resolution)
	require.NotNil(t, got.SLABreachedAt)

	stored, err := f.store.GetWorkOrder(ctx, wo.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SLABreachedAt)
	assert.True(t, stored.SLABreachedAt.Equal(created.Add(3*time.Hour+30*time.Minute)), "first observation wins")
}
