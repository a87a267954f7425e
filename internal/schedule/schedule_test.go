package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/sla"
	"facilities-maintenance-backend/internal/store"
	"facilities-maintenance-backend/internal/store/storetest"
	"facilities-maintenance-backend/internal/workorder"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type env struct {
	store     store.Store
	schedules *Service
	factory   *Factory
	generator *Generator
	policy    model.SLAPolicy
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := storetest.New(t)
	db := st.DB()

	require.NoError(t, db.Create(&model.Facility{ID: 1, Name: "HQ"}).Error)
	require.NoError(t, db.Create(&model.Building{ID: 10, FacilityID: 1, Name: "North"}).Error)
	require.NoError(t, db.Create(&model.Building{ID: 11, FacilityID: 1, Name: "South"}).Error)
	require.NoError(t, db.Create(&model.Floor{ID: 20, BuildingID: 10, Name: "2"}).Error)
	require.NoError(t, db.Create(&model.Room{ID: 30, FloorID: 20, Name: "201"}).Error)
	require.NoError(t, db.Create(&model.Asset{ID: 102, Name: "A102", RoomID: storetest.Ptr(int64(30)), Active: true}).Error)
	require.NoError(t, db.Create(&model.Asset{ID: 104, Name: "A104", BuildingID: storetest.Ptr(int64(11)), Active: true}).Error)

	e := &env{store: st}
	e.policy = model.SLAPolicy{Name: "HQ normal", Active: true, Priority: model.PriorityNormal, ResponseHours: 8, ResolutionHours: 72, MaxEscalationLevel: 3}
	require.NoError(t, st.SavePolicy(context.Background(), &e.policy, []int64{1}, nil, model.AuditEntry{Action: "create", At: date(2024, 1, 1)}))

	workOrders := workorder.NewService(st, sla.NewCalculator(time.UTC, nil), 2)
	e.schedules = NewService(st)
	e.factory = NewFactory(st, st, workOrders, NewGuard(st))
	e.generator = NewGenerator(st, e.factory)
	return e
}

func on(t time.Time) execution.Context {
	return execution.System(execution.FixedClock{T: t})
}

func assetSchedule(assetID int64) *model.MaintenanceSchedule {
	return &model.MaintenanceSchedule{
		Name:            "Monthly AHU service",
		Kind:            model.ScheduleAsset,
		AssetID:         &assetID,
		MaintenanceKind: model.KindPreventive,
		IntervalCount:   1,
		IntervalUnit:    model.UnitMonth,
		Active:          true,
	}
}

func TestGenerator_EndToEndA102(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s := assetSchedule(102)
	s.LastOccurrence = storetest.Ptr(date(2024, 1, 1))
	require.NoError(t, e.schedules.Create(ctx, on(date(2024, 1, 1)), s))
	require.Equal(t, date(2024, 2, 1), *s.NextOccurrence)

	evaluated := date(2024, 2, 2).Add(6 * time.Hour)
	res, err := e.generator.GenerateDueSchedules(ctx, on(evaluated))
	require.NoError(t, err)
	assert.Equal(t, 1, res.GeneratedCount)
	assert.Empty(t, res.Errors)

	var wos []model.WorkOrder
	require.NoError(t, e.store.DB().Find(&wos).Error)
	require.Len(t, wos, 1)
	wo := wos[0]
	assert.Equal(t, model.StateDraft, wo.State)
	assert.Equal(t, model.KindPreventive, wo.Kind)
	assert.Equal(t, model.PriorityNormal, wo.Priority)
	assert.Equal(t, "Monthly AHU service - A102", wo.Title)
	assert.EqualValues(t, DefaultEstimatedHours, wo.EstimatedHours)
	require.NotNil(t, wo.SLAPolicyID)
	assert.Equal(t, e.policy.ID, *wo.SLAPolicyID)
	require.NotNil(t, wo.FacilityID)
	assert.Equal(t, int64(1), *wo.FacilityID)
	assert.True(t, wo.ScheduledDate.Equal(date(2024, 2, 1)))

	stored, err := e.store.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, stored.NextOccurrence.Equal(date(2024, 3, 1)))
	assert.True(t, stored.LastOccurrence.Equal(date(2024, 2, 1)))

	trail, err := e.store.AuditTrail(ctx, stored)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "generated WO-2024-00001 with 0 tasks", trail[1].Note)

	// Second run the same day finds nothing due.
	res, err = e.generator.GenerateDueSchedules(ctx, on(evaluated))
	require.NoError(t, err)
	assert.Zero(t, res.GeneratedCount)
}

func TestFactory_IdempotentWithStaleSnapshot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s := assetSchedule(102)
	s.NextOccurrence = storetest.Ptr(date(2024, 2, 1))
	require.NoError(t, e.schedules.Create(ctx, on(date(2024, 1, 1)), s))

	// Two overlapping runs that both read the schedule before either advanced it.
	first, second := *s, *s
	out, err := e.factory.Generate(ctx, on(date(2024, 2, 2)), &first, Options{})
	require.NoError(t, err)
	assert.Len(t, out.Created, 1)

	out, err = e.factory.Generate(ctx, on(date(2024, 2, 2)), &second, Options{})
	require.NoError(t, err)
	assert.Empty(t, out.Created)
	assert.Equal(t, []int64{102}, out.Skipped)

	var n int64
	require.NoError(t, e.store.DB().Model(&model.WorkOrder{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

// rendezvous holds every batch after its due query until all of them have
// read the same schedules.
type rendezvous struct {
	DueLister
	arrived sync.WaitGroup
}

func (r *rendezvous) DueSchedules(ctx context.Context, now time.Time) ([]model.MaintenanceSchedule, error) {
	due, err := r.DueLister.DueSchedules(ctx, now)
	r.arrived.Done()
	r.arrived.Wait()
	return due, err
}

func TestGenerator_ConcurrentBatchesCreateOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s := assetSchedule(102)
	s.NextOccurrence = storetest.Ptr(date(2024, 2, 1))
	require.NoError(t, e.schedules.Create(ctx, on(date(2024, 1, 1)), s))

	lister := &rendezvous{DueLister: e.store}
	lister.arrived.Add(2)
	gen := NewGenerator(lister, e.factory)

	results := make([]Result, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = gen.GenerateDueSchedules(ctx, on(date(2024, 2, 2)))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, results[0].GeneratedCount+results[1].GeneratedCount)
	assert.Empty(t, results[0].Errors)
	assert.Empty(t, results[1].Errors)

	var n int64
	require.NoError(t, e.store.DB().Model(&model.WorkOrder{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	stored, err := e.store.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, stored.NextOccurrence.Equal(date(2024, 3, 1)))
}

func TestGenerator_DueDayFollowsLocation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s := assetSchedule(102)
	s.NextOccurrence = storetest.Ptr(date(2024, 2, 1))
	require.NoError(t, e.schedules.Create(ctx, on(date(2024, 1, 1)), s))

	// 18:00 UTC on Jan 31 is already Feb 1 in UTC+8.
	at := time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC)
	res, err := e.generator.GenerateDueSchedules(ctx, on(at))
	require.NoError(t, err)
	assert.Zero(t, res.GeneratedCount)

	ec := on(at)
	ec.Location = time.FixedZone("UTC+8", 8*3600)
	res, err = e.generator.GenerateDueSchedules(ctx, ec)
	require.NoError(t, err)
	assert.Equal(t, 1, res.GeneratedCount)

	var wo model.WorkOrder
	require.NoError(t, e.store.DB().First(&wo).Error)
	assert.True(t, wo.ScheduledDate.Equal(date(2024, 2, 1)))
}

func TestFactory_LocationSchedule(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	s := &model.MaintenanceSchedule{
		Name:            "North building inspection",
		Kind:            model.ScheduleLocation,
		FacilityID:      storetest.Ptr(int64(1)),
		BuildingID:      storetest.Ptr(int64(10)),
		MaintenanceKind: model.KindPreventive,
		IntervalCount:   1,
		IntervalUnit:    model.UnitQuarter,
		NextOccurrence:  storetest.Ptr(date(2024, 1, 31)),
		Active:          true,
	}
	require.NoError(t, e.schedules.Create(ctx, on(date(2024, 1, 1)), s))

	out, err := e.factory.Generate(ctx, on(date(2024, 2, 1)), s, Options{})
	require.NoError(t, err)
	require.Len(t, out.Created, 1)
	assert.Equal(t, int64(102), *out.Created[0].AssetID)
	assert.True(t, s.NextOccurrence.Equal(date(2024, 4, 30)))

	empty := &model.MaintenanceSchedule{
		Name:            "Empty floor",
		Kind:            model.ScheduleLocation,
		FloorID:         storetest.Ptr(int64(999)),
		MaintenanceKind: model.KindPreventive,
		IntervalCount:   1,
		IntervalUnit:    model.UnitMonth,
		NextOccurrence:  storetest.Ptr(date(2024, 1, 31)),
		Active:          true,
	}
	require.NoError(t, e.schedules.Create(ctx, on(date(2024, 1, 1)), empty))
	_, err = e.factory.Generate(ctx, on(date(2024, 2, 1)), empty, Options{})
	assert.ErrorIs(t, err, ErrNoAssetsInLocation)
}

func TestFactory_ClonesJobPlan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	plan := &model.JobPlan{Name: "AHU PM", Active: true, Sections: []model.JobPlanSection{
		{Name: "Filters", Sequence: 1, Tasks: []model.JobPlanTask{
			{Name: "Replace pre-filter", Sequence: 1, DurationHours: 0.5, IsChecklistItem: true},
			{Name: "Replace bag filter", Sequence: 2, DurationHours: 1},
		}},
		{Name: "Belts", Sequence: 2, Tasks: []model.JobPlanTask{
			{Name: "Check tension", Sequence: 1, DurationHours: 0.25},
		}},
	}}
	require.NoError(t, e.store.DB().Create(plan).Error)

	s := assetSchedule(102)
	s.JobPlanID = &plan.ID
	s.NextOccurrence = storetest.Ptr(date(2024, 2, 1))
	require.NoError(t, e.schedules.Create(ctx, on(date(2024, 1, 1)), s))
	s, err := e.store.GetSchedule(ctx, s.ID)
	require.NoError(t, err)

	out, err := e.factory.Generate(ctx, on(date(2024, 2, 1)), s, Options{})
	require.NoError(t, err)
	require.Len(t, out.Created, 1)
	assert.InDelta(t, 1.75, out.Created[0].EstimatedHours, 1e-9)

	require.NoError(t, e.store.DB().Model(&model.JobPlanTask{}).Where("name = ?", "Check tension").Update("name", "Renamed").Error)

	wo, err := e.store.GetWorkOrder(ctx, out.Created[0].ID)
	require.NoError(t, err)
	require.Len(t, wo.Sections, 2)
	assert.Equal(t, "Filters", wo.Sections[0].Name)
	require.Len(t, wo.Sections[0].Tasks, 2)
	assert.True(t, wo.Sections[0].Tasks[0].IsChecklistItem)
	assert.Equal(t, "Check tension", wo.Sections[1].Tasks[0].Name)
}

func TestFactory_GenerateWithLeadTime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	today := date(2024, 3, 4)

	s := assetSchedule(102)
	s.IntervalUnit = model.UnitWeek
	s.NextOccurrence = &today
	require.NoError(t, e.schedules.Create(ctx, on(today), s))
	stale := *s

	out, err := e.factory.GenerateWithLeadTime(ctx, on(today), s, 14, false)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{today, date(2024, 3, 11), date(2024, 3, 18)}, out.Dates)
	assert.Len(t, out.Created, 3)
	assert.True(t, s.NextOccurrence.Equal(date(2024, 3, 25)))

	out, err = e.factory.GenerateWithLeadTime(ctx, on(today), &stale, 14, false)
	require.NoError(t, err)
	assert.Empty(t, out.Created)
	assert.Len(t, out.Skipped, 3)

	out, err = e.factory.GenerateWithLeadTime(ctx, on(today), &stale, 14, true)
	require.NoError(t, err)
	assert.Len(t, out.Created, 3)

	_, err = e.factory.GenerateWithLeadTime(ctx, on(today), s, -1, false)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestGenerator_ContinuesPastFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	broken := &model.MaintenanceSchedule{
		Name:            "Empty floor",
		Kind:            model.ScheduleLocation,
		FloorID:         storetest.Ptr(int64(999)),
		MaintenanceKind: model.KindPreventive,
		IntervalCount:   1,
		IntervalUnit:    model.UnitMonth,
		NextOccurrence:  storetest.Ptr(date(2024, 1, 1)),
		Active:          true,
	}
	require.NoError(t, e.schedules.Create(ctx, on(date(2024, 1, 1)), broken))
	ok := assetSchedule(102)
	ok.NextOccurrence = storetest.Ptr(date(2024, 1, 15))
	require.NoError(t, e.schedules.Create(ctx, on(date(2024, 1, 1)), ok))

	res, err := e.generator.GenerateDueSchedules(ctx, on(date(2024, 2, 1)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.GeneratedCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, broken.ID, res.Errors[0].ScheduleID)

	trail, err := e.store.AuditTrail(ctx, broken)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "generation_failed", trail[1].Action)
	assert.Contains(t, trail[1].Note, ErrNoAssetsInLocation.Error())
}

func TestGenerator_NoPolicyIsRecordedPerSchedule(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.DeactivatePolicy(ctx, e.policy.ID, model.AuditEntry{Action: "deactivate", At: date(2024, 1, 1)}))

	s := assetSchedule(102)
	s.NextOccurrence = storetest.Ptr(date(2024, 1, 15))
	require.NoError(t, e.schedules.Create(ctx, on(date(2024, 1, 1)), s))

	res, err := e.generator.GenerateDueSchedules(ctx, on(date(2024, 2, 1)))
	require.NoError(t, err)
	assert.Zero(t, res.GeneratedCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error, sla.ErrNoActivePolicy.Error())

	stored, err := e.store.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, stored.NextOccurrence.Equal(date(2024, 1, 15)), "a failed schedule is not advanced")
}

func TestValidate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.schedules.Create(ctx, on(date(2024, 1, 1)), assetSchedule(102)))

	testCases := []struct {
		name   string
		mutate func(*model.MaintenanceSchedule)
		want   string
	}{
		{"zero interval", func(s *model.MaintenanceSchedule) { s.IntervalCount = 0 }, "interval count must be between 1 and 1000, got 0"},
		{"job plan on corrective", func(s *model.MaintenanceSchedule) {
			s.MaintenanceKind = model.KindCorrective
			s.JobPlanID = storetest.Ptr(int64(1))
		}, "a job plan can only be attached to a preventive schedule"},
		{"asset and location", func(s *model.MaintenanceSchedule) { s.RoomID = storetest.Ptr(int64(30)) }, "an asset schedule cannot also target a location"},
		{"location without target", func(s *model.MaintenanceSchedule) {
			s.Kind = model.ScheduleLocation
			s.AssetID = nil
		}, "a location schedule requires a facility, building, floor or room"},
		{"second active schedule", func(*model.MaintenanceSchedule) {}, "asset 102 already has an active preventive schedule"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := assetSchedule(102)
			tc.mutate(s)
			err := Validate(ctx, e.store, *s)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.want, verr.Reason)
		})
	}

	other := assetSchedule(102)
	other.MaintenanceKind = model.KindInspection
	assert.NoError(t, Validate(ctx, e.store, *other))
}
