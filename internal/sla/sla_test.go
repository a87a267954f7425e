package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facilities-maintenance-backend/internal/model"
)

func policy(id int64, name string, priority model.Priority, facilities ...int64) model.SLAPolicy {
	p := model.SLAPolicy{ID: id, Name: name, Active: true, Priority: priority}
	for _, f := range facilities {
		p.Facilities = append(p.Facilities, model.Facility{ID: f})
	}
	return p
}

func TestSelect_SpecificityOrder(t *testing.T) {
	facHigh := policy(1, "facA-high", model.PriorityHigh, 10)
	facAny := policy(2, "facA-any", "", 10)
	globalHigh := policy(3, "global-high", model.PriorityHigh)
	fallback := policy(4, "fallback", model.PriorityLow, 20)

	all := []model.SLAPolicy{fallback, globalHigh, facAny, facHigh}

	testCases := []struct {
		name       string
		policies   []model.SLAPolicy
		priority   model.Priority
		facilityID int64
		expected   string
	}{
		{"facility and priority", all, model.PriorityHigh, 10, "facA-high"},
		{"facility any priority", all, model.PriorityNormal, 10, "facA-any"},
		{"priority any facility", all, model.PriorityHigh, 30, "global-high"},
		{"unknown facility uses priority", all, model.PriorityHigh, 0, "global-high"},
		{"any active", []model.SLAPolicy{fallback}, model.PriorityCritical, 10, "fallback"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Select(tc.policies, tc.priority, tc.facilityID)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got.Name)
		})
	}
}

func TestSelect_RankBreaksTies(t *testing.T) {
	low := policy(1, "low-rank", model.PriorityHigh, 10)
	high := policy(2, "high-rank", model.PriorityHigh, 10)
	high.Rank = 5
	twin := policy(3, "twin", model.PriorityHigh, 10)
	twin.Rank = 5

	got, err := Select([]model.SLAPolicy{low, twin, high}, model.PriorityHigh, 10)
	require.NoError(t, err)
	assert.Equal(t, "high-rank", got.Name)
}

func TestSelect_NoActivePolicy(t *testing.T) {
	inactive := policy(1, "off", model.PriorityHigh)
	inactive.Active = false

	_, err := Select([]model.SLAPolicy{inactive}, model.PriorityHigh, 0)
	assert.ErrorIs(t, err, ErrNoActivePolicy)

	_, err = Select(nil, model.PriorityHigh, 0)
	assert.ErrorIs(t, err, ErrNoActivePolicy)
}

type stubPolicies struct {
	policies []model.SLAPolicy
	err      error
}

func (s stubPolicies) ActivePolicies(context.Context) ([]model.SLAPolicy, error) {
	return s.policies, s.err
}

func TestResolver(t *testing.T) {
	r := NewResolver(stubPolicies{policies: []model.SLAPolicy{policy(1, "only", "")}})
	got, err := r.Resolve(context.Background(), model.PriorityLow, 3)
	require.NoError(t, err)
	assert.Equal(t, "only", got.Name)

	_, err = NewResolver(stubPolicies{}).Resolve(context.Background(), model.PriorityLow, 3)
	assert.ErrorIs(t, err, ErrNoActivePolicy)

	_, err = NewResolver(stubPolicies{err: errors.New("db down")}).Resolve(context.Background(), model.PriorityLow, 3)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoActivePolicy)
}

func TestEvaluate(t *testing.T) {
	deadline := time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)
	warning := 2 * time.Hour

	testCases := []struct {
		name     string
		now      time.Time
		state    model.WorkOrderState
		expected Status
	}{
		{"well before", deadline.Add(-3 * time.Hour), model.StateAssigned, StatusOnTime},
		{"entering warning window", deadline.Add(-2 * time.Hour), model.StateAssigned, StatusAtRisk},
		{"inside warning window", deadline.Add(-time.Minute), model.StateInProgress, StatusAtRisk},
		{"exactly at deadline", deadline, model.StateInProgress, StatusAtRisk},
		{"after deadline", deadline.Add(time.Second), model.StateOnHold, StatusBreached},
		{"completed wins", deadline.Add(time.Hour), model.StateCompleted, StatusCompleted},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Evaluate(tc.now, &deadline, warning, tc.state))
		})
	}

	assert.Equal(t, StatusOnTime, Evaluate(deadline, nil, warning, model.StateDraft))
}

func TestInspect(t *testing.T) {
	created := time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC)
	response := created.Add(time.Hour)
	resolution := created.Add(4 * time.Hour)
	wo := model.WorkOrder{
		State:              model.StateDraft,
		ResponseDeadline:   &response,
		ResolutionDeadline: &resolution,
	}

	r := Inspect(wo, 1, created.Add(5*time.Hour))
	assert.Equal(t, StatusBreached, r.Response)
	assert.Equal(t, StatusBreached, r.Resolution)
	assert.True(t, r.Breached())

	r = Inspect(wo, 1, created.Add(90*time.Minute))
	assert.Equal(t, StatusBreached, r.Response)
	assert.Equal(t, StatusOnTime, r.Resolution)

	r = Inspect(wo, 1, created.Add(3*time.Hour+30*time.Minute))
	assert.Equal(t, StatusAtRisk, r.Resolution)
}

func TestCalculator_WallClock(t *testing.T) {
	c := NewCalculator(time.UTC, nil)
	created := time.Date(2024, 2, 2, 15, 0, 0, 0, time.UTC)
	resp, res := c.Deadlines(model.SLAPolicy{ResponseHours: 1.5, ResolutionHours: 4}, created)
	assert.Equal(t, created.Add(90*time.Minute), resp)
	assert.Equal(t, created.Add(4*time.Hour), res)
}

func TestCalculator_BusinessHours(t *testing.T) {
	c := NewCalculator(time.UTC, []Holiday{{Name: "New Year", Month: time.January, Day: 1}})
	p := model.SLAPolicy{
		ResponseHours:     1,
		ResolutionHours:   4,
		BusinessHoursOnly: true,
		BusinessStartHour: 8,
		BusinessEndHour:   17,
	}

	// Friday 15:00: two hours left today, the rest on Monday.
	created := time.Date(2024, 2, 2, 15, 0, 0, 0, time.UTC)
	resp, res := c.Deadlines(p, created)
	assert.Equal(t, time.Date(2024, 2, 2, 16, 0, 0, 0, time.UTC), resp)
	assert.Equal(t, time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC), res)

	// Friday 29 Dec 16:00: Monday 1 Jan is a holiday.
	created = time.Date(2023, 12, 29, 16, 0, 0, 0, time.UTC)
	_, res = c.Deadlines(p, created)
	assert.Equal(t, time.Date(2024, 1, 2, 11, 0, 0, 0, time.UTC), res)

	p.IncludeHolidays = true
	_, res = c.Deadlines(p, created)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), res)

	assert.False(t, c.IsWorkTime(p, time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)))
	p.IncludeWeekends = true
	assert.True(t, c.IsWorkTime(p, time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)))
}

func TestNormalize(t *testing.T) {
	p := model.SLAPolicy{Name: "default"}
	require.NoError(t, Normalize(&p, 2))
	assert.Equal(t, 4.0, p.ResponseHours)
	assert.Equal(t, 24.0, p.ResolutionHours)
	assert.Equal(t, 2.0, p.WarningHours)
	assert.Equal(t, 3, p.MaxEscalationLevel)
	assert.Equal(t, 7.0, p.BusinessStartHour)

	testCases := []struct {
		name   string
		policy model.SLAPolicy
	}{
		{"missing name", model.SLAPolicy{}},
		{"response not before resolution", model.SLAPolicy{Name: "x", ResponseHours: 8, ResolutionHours: 8}},
		{"negative level", model.SLAPolicy{Name: "x", MaxEscalationLevel: -1}},
		{"bad intervals", model.SLAPolicy{Name: "x", EscalationIntervals: "2,zero"}},
		{"bad priority", model.SLAPolicy{Name: "x", Priority: "urgent"}},
		{"bad window", model.SLAPolicy{Name: "x", BusinessHoursOnly: true, BusinessStartHour: 18, BusinessEndHour: 9}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.policy
			err := Normalize(&p, 2)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestIntervals(t *testing.T) {
	defaults := []float64{2, 4, 8}
	assert.Equal(t, defaults, Intervals(model.SLAPolicy{}, defaults))
	assert.Equal(t, []float64{1, 3}, Intervals(model.SLAPolicy{EscalationIntervals: "1,3"}, defaults))
	assert.Equal(t, defaults, Intervals(model.SLAPolicy{EscalationIntervals: "junk"}, defaults))
}
