package schedule

import (
	"context"
	"fmt"

	"facilities-maintenance-backend/internal/location"
	"facilities-maintenance-backend/internal/model"
)

// MaxIntervalCount bounds the interval of a schedule.
const MaxIntervalCount = 1000

// ValidationError rejects a schedule before anything is written.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func reject(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ActiveCounter counts other active schedules on an asset.
type ActiveCounter interface {
	CountActiveSchedules(ctx context.Context, assetID int64, kind model.MaintenanceKind, excludeID int64) (int64, error)
}

// Validate checks the structural rules of s and, for an active asset
// schedule, that no other active schedule covers the same asset and kind.
func Validate(ctx context.Context, counter ActiveCounter, s model.MaintenanceSchedule) error {
	if s.Name == "" {
		return reject("a schedule name is required")
	}
	if !s.MaintenanceKind.Valid() {
		return reject("unknown maintenance kind %q", s.MaintenanceKind)
	}
	if !s.IntervalUnit.Valid() {
		return reject("unknown interval unit %q", s.IntervalUnit)
	}
	if s.IntervalCount < 1 || s.IntervalCount > MaxIntervalCount {
		return reject("interval count must be between 1 and %d, got %d", MaxIntervalCount, s.IntervalCount)
	}
	if s.DefaultPriority != "" && !s.DefaultPriority.Valid() {
		return reject("unknown priority %q", s.DefaultPriority)
	}
	if s.JobPlanID != nil && s.MaintenanceKind != model.KindPreventive {
		return reject("a job plan can only be attached to a preventive schedule")
	}

	hasLocation := !location.Chain(location.OfSchedule(s)).Empty()
	switch s.Kind {
	case model.ScheduleAsset:
		if s.AssetID == nil {
			return reject("an asset schedule requires an asset")
		}
		if hasLocation {
			return reject("an asset schedule cannot also target a location")
		}
	case model.ScheduleLocation:
		if s.AssetID != nil {
			return reject("a location schedule cannot target an asset")
		}
		if !hasLocation {
			return reject("a location schedule requires a facility, building, floor or room")
		}
	default:
		return reject("unknown schedule kind %q", s.Kind)
	}

	if s.Active && s.AssetID != nil {
		n, err := counter.CountActiveSchedules(ctx, *s.AssetID, s.MaintenanceKind, s.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return reject("asset %d already has an active %s schedule", *s.AssetID, s.MaintenanceKind)
		}
	}
	return nil
}
