package model

import "time"

// WorkOrder is a single unit of maintenance work.
type WorkOrder struct {
	ID          int64  `gorm:"primaryKey"`
	Reference   string `gorm:"size:32;uniqueIndex;not null"`
	Title       string `gorm:"size:256;not null"`
	Description string

	// Subject: an asset, an explicit location, or both.
	AssetID    *int64 `gorm:"index"`
	FacilityID *int64 `gorm:"index"`
	BuildingID *int64
	FloorID    *int64
	RoomID     *int64

	Kind             MaintenanceKind `gorm:"size:16;not null"`
	Priority         Priority        `gorm:"size:16;not null"`
	ScheduleID       *int64          `gorm:"index"`
	ServiceRequestID *int64
	ScheduledDate    *time.Time `gorm:"index"`
	EstimatedHours   float64

	SLAPolicyID         *int64 `gorm:"column:sla_policy_id;index"`
	ResponseDeadline    *time.Time
	ResolutionDeadline  *time.Time
	SLABreachedAt       *time.Time `gorm:"column:sla_breached_at"`
	EscalationLevel     int        `gorm:"not null"`
	EscalationTriggered bool       `gorm:"not null"`
	EscalationCount     int        `gorm:"not null"`

	State         WorkOrderState `gorm:"size:16;not null;index"`
	ApprovalState ApprovalState  `gorm:"size:16;not null"`
	HoldReason    string         `gorm:"size:32"`
	HoldComment   string
	HoldApproval  HoldApproval `gorm:"size:16;not null"`
	ActualStart   *time.Time
	ActualEnd     *time.Time

	CreatedByID *int64
	Version     int `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Sections    []WorkOrderSection     `gorm:"foreignKey:WorkOrderID"`
	Assignments []TechnicianAssignment `gorm:"foreignKey:WorkOrderID"`
}

// AuditSubject implements Auditable.
func (w WorkOrder) AuditSubject() (string, int64) {
	return "work_order", w.ID
}

// IncompleteAssignments returns the assignments not yet completed.
func (w WorkOrder) IncompleteAssignments() []TechnicianAssignment {
	var out []TechnicianAssignment
	for _, a := range w.Assignments {
		if a.Status != AssignmentCompleted {
			out = append(out, a)
		}
	}
	return out
}

// WorkOrderSection is a copied job plan section.
type WorkOrderSection struct {
	ID          int64  `gorm:"primaryKey"`
	WorkOrderID int64  `gorm:"index;not null"`
	Name        string `gorm:"size:256;not null"`
	Sequence    int    `gorm:"not null"`

	Tasks []WorkOrderTask `gorm:"foreignKey:SectionID"`
}

// WorkOrderTask is a checklist line on a work order.
type WorkOrderTask struct {
	ID              int64  `gorm:"primaryKey"`
	SectionID       int64  `gorm:"index;not null"`
	Name            string `gorm:"size:256;not null"`
	Sequence        int    `gorm:"not null"`
	Description     string
	IsChecklistItem bool    `gorm:"not null"`
	DurationHours   float64 `gorm:"not null"`
	ToolsMaterials  string
	Done            bool `gorm:"not null"`
	DoneAt          *time.Time
}

// TechnicianAssignment links a technician to a work order.
type TechnicianAssignment struct {
	ID             int64            `gorm:"primaryKey"`
	WorkOrderID    int64            `gorm:"index;not null"`
	TechnicianID   int64            `gorm:"not null"`
	TechnicianName string           `gorm:"size:128"`
	Status         AssignmentStatus `gorm:"size:16;not null"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

// ReferenceSequence backs per-prefix work order numbering.
type ReferenceSequence struct {
	Prefix string `gorm:"primaryKey;size:16"`
	Value  int64  `gorm:"not null"`
}
