package model

import "time"

// MaintenanceSchedule is a recurrence policy that produces work orders.
type MaintenanceSchedule struct {
	ID   int64        `gorm:"primaryKey"`
	Name string       `gorm:"size:256;not null"`
	Kind ScheduleKind `gorm:"size:16;not null"`

	// Asset-based target.
	AssetID *int64 `gorm:"index"`
	// Location-based target; at least one is set.
	FacilityID *int64
	BuildingID *int64
	FloorID    *int64
	RoomID     *int64

	MaintenanceKind MaintenanceKind `gorm:"size:16;not null;index"`
	IntervalCount   int             `gorm:"not null"`
	IntervalUnit    IntervalUnit    `gorm:"size:16;not null"`
	JobPlanID       *int64
	DefaultPriority Priority `gorm:"size:16;not null"`

	LastOccurrence *time.Time
	NextOccurrence *time.Time `gorm:"index"`
	Status         ScheduleStatus `gorm:"size:16;not null"`
	Active         bool           `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	JobPlan *JobPlan
}

// AuditSubject implements Auditable.
func (s MaintenanceSchedule) AuditSubject() (string, int64) {
	return "maintenance_schedule", s.ID
}
