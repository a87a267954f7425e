package store

import (
	"time"

	"facilities-maintenance-backend/internal/model"
)

// DuplicateQuery describes an open work order that would make generating
// another one redundant. From and To bound the scheduled date inclusively.
type DuplicateQuery struct {
	ScheduleID int64
	AssetID    int64
	Kind       model.MaintenanceKind
	From       time.Time
	To         time.Time
}

// WorkOrderUpdate is a single-record change applied only while the work order
// is still in ExpectedState.
type WorkOrderUpdate struct {
	ExpectedState model.WorkOrderState
	Fields        map[string]any
	// BumpVersion increments the version column; set for lifecycle transitions.
	BumpVersion   bool
	NewAssignment *model.TechnicianAssignment
	Audit         *model.AuditEntry
}
