package schedule

import (
	"context"
	"time"

	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/store"
)

// Window bounds the scheduled date of a duplicate, inclusively.
type Window struct {
	From time.Time
	To   time.Time
}

// On is the window of a single day.
func On(day time.Time) Window {
	return Window{From: day, To: day}
}

// DuplicateFinder is the query the Guard needs.
type DuplicateFinder interface {
	ExistsOpenWorkOrder(ctx context.Context, q store.DuplicateQuery) (bool, error)
}

// Guard reports whether generating a work order would duplicate an open one.
type Guard struct {
	finder DuplicateFinder
}

// NewGuard creates a Guard.
func NewGuard(finder DuplicateFinder) *Guard {
	return &Guard{finder: finder}
}

// Exists reports whether an open work order of the schedule's kind already
// covers assetID within w.
func (g *Guard) Exists(ctx context.Context, s model.MaintenanceSchedule, assetID int64, w Window) (bool, error) {
	return g.finder.ExistsOpenWorkOrder(ctx, store.DuplicateQuery{
		ScheduleID: s.ID,
		AssetID:    assetID,
		Kind:       s.MaintenanceKind,
		From:       w.From,
		To:         w.To,
	})
}
