// Package schedule turns recurring maintenance schedules into work orders.
package schedule

import (
	"context"
	"time"

	"facilities-maintenance-backend/internal/execution"
	"facilities-maintenance-backend/internal/logger"
	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/recurrence"
	"facilities-maintenance-backend/internal/store"
)

// Service creates and retires schedules.
type Service struct {
	store store.Store
}

// NewService creates a schedule service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Create validates s, derives its next occurrence and stores it. A schedule
// with a last occurrence gets next = last + interval; otherwise a missing
// next occurrence defaults to today.
func (svc *Service) Create(ctx context.Context, ec execution.Context, s *model.MaintenanceSchedule) error {
	if s.Status == "" {
		s.Status = model.SchedulePlanned
	}
	if s.DefaultPriority == "" {
		s.DefaultPriority = model.PriorityNormal
	}
	if err := Validate(ctx, svc.store, *s); err != nil {
		return err
	}

	switch {
	case s.LastOccurrence != nil:
		last := execution.Day(*s.LastOccurrence)
		next, err := recurrence.Next(last, s.IntervalCount, s.IntervalUnit)
		if err != nil {
			return reject("%v", err)
		}
		s.LastOccurrence, s.NextOccurrence = &last, &next
	case s.NextOccurrence != nil:
		next := execution.Day(*s.NextOccurrence)
		s.NextOccurrence = &next
	default:
		today := ec.Today()
		s.NextOccurrence = &today
	}

	now := ec.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	if err := svc.store.CreateSchedule(ctx, s, model.NewAuditEntry(s, ec.Actor(), now, "create", "schedule created")); err != nil {
		return err
	}
	logger.WithSchedule(s.ID, s.Name).WithField("next", s.NextOccurrence.Format(time.DateOnly)).Info("Schedule created")
	return nil
}

// Get returns a schedule with its job plan.
func (svc *Service) Get(ctx context.Context, id int64) (*model.MaintenanceSchedule, error) {
	return svc.store.GetSchedule(ctx, id)
}

// Deactivate retires a schedule. Generated work orders keep referencing it.
func (svc *Service) Deactivate(ctx context.Context, ec execution.Context, id int64) error {
	s := model.MaintenanceSchedule{ID: id}
	return svc.store.DeactivateSchedule(ctx, id, model.NewAuditEntry(s, ec.Actor(), ec.Now(), "deactivate", "schedule deactivated"))
}
