package api

import (
	"time"

	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/parse"
	"facilities-maintenance-backend/internal/sla"
)

// WorkOrderResponse is the API form of a work order.
type WorkOrderResponse struct {
	ID                  int64                 `json:"id"`
	Reference           string                `json:"reference"`
	Title               string                `json:"title"`
	Description         string                `json:"description,omitempty"`
	AssetID             *int64                `json:"asset_id"`
	FacilityID          *int64                `json:"facility_id"`
	BuildingID          *int64                `json:"building_id"`
	FloorID             *int64                `json:"floor_id"`
	RoomID              *int64                `json:"room_id"`
	Kind                model.MaintenanceKind `json:"kind"`
	Priority            model.Priority        `json:"priority"`
	ScheduleID          *int64                `json:"schedule_id"`
	ScheduledDate       *time.Time            `json:"scheduled_date"`
	EstimatedHours      float64               `json:"estimated_hours"`
	State               model.WorkOrderState  `json:"state"`
	ApprovalState       model.ApprovalState   `json:"approval_state"`
	HoldReason          string                `json:"hold_reason,omitempty"`
	HoldApproval        model.HoldApproval    `json:"hold_approval"`
	SLAPolicyID         *int64                `json:"sla_policy_id"`
	EscalationTriggered bool                  `json:"escalation_triggered"`
	EscalationCount     int                   `json:"escalation_count"`
	ActualStart         *time.Time            `json:"actual_start"`
	ActualEnd           *time.Time            `json:"actual_end"`
	Version             int                   `json:"version"`
	CreatedAt           time.Time             `json:"created_at"`
	SLA                 *sla.Report           `json:"sla,omitempty"`
	Sections            []SectionResponse     `json:"sections"`
	Assignments         []AssignmentResponse  `json:"assignments"`
}

// SectionResponse is a checklist section.
type SectionResponse struct {
	ID    int64          `json:"id"`
	Name  string         `json:"name"`
	Tasks []TaskResponse `json:"tasks"`
}

// TaskResponse is a checklist line.
type TaskResponse struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	IsChecklistItem bool       `json:"is_checklist_item"`
	DurationHours   float64    `json:"duration_hours"`
	Done            bool       `json:"done"`
	DoneAt          *time.Time `json:"done_at"`
}

// AssignmentResponse is a technician assignment.
type AssignmentResponse struct {
	ID             int64                  `json:"id"`
	TechnicianID   int64                  `json:"technician_id"`
	TechnicianName string                 `json:"technician_name"`
	Status         model.AssignmentStatus `json:"status"`
	StartedAt      *time.Time             `json:"started_at"`
	CompletedAt    *time.Time             `json:"completed_at"`
}

func newWorkOrderResponse(wo model.WorkOrder, report *sla.Report) WorkOrderResponse {
	resp := WorkOrderResponse{
		ID:                  wo.ID,
		Reference:           wo.Reference,
		Title:               wo.Title,
		Description:         wo.Description,
		AssetID:             wo.AssetID,
		FacilityID:          wo.FacilityID,
		BuildingID:          wo.BuildingID,
		FloorID:             wo.FloorID,
		RoomID:              wo.RoomID,
		Kind:                wo.Kind,
		Priority:            wo.Priority,
		ScheduleID:          wo.ScheduleID,
		ScheduledDate:       wo.ScheduledDate,
		EstimatedHours:      wo.EstimatedHours,
		State:               wo.State,
		ApprovalState:       wo.ApprovalState,
		HoldReason:          wo.HoldReason,
		HoldApproval:        wo.HoldApproval,
		SLAPolicyID:         wo.SLAPolicyID,
		EscalationTriggered: wo.EscalationTriggered,
		EscalationCount:     wo.EscalationCount,
		ActualStart:         wo.ActualStart,
		ActualEnd:           wo.ActualEnd,
		Version:             wo.Version,
		CreatedAt:           wo.CreatedAt,
		SLA:                 report,
		Sections:            make([]SectionResponse, 0, len(wo.Sections)),
		Assignments:         make([]AssignmentResponse, 0, len(wo.Assignments)),
	}
	for _, s := range wo.Sections {
		section := SectionResponse{ID: s.ID, Name: s.Name, Tasks: make([]TaskResponse, 0, len(s.Tasks))}
		for _, t := range s.Tasks {
			section.Tasks = append(section.Tasks, TaskResponse{
				ID:              t.ID,
				Name:            t.Name,
				IsChecklistItem: t.IsChecklistItem,
				DurationHours:   t.DurationHours,
				Done:            t.Done,
				DoneAt:          t.DoneAt,
			})
		}
		resp.Sections = append(resp.Sections, section)
	}
	for _, a := range wo.Assignments {
		resp.Assignments = append(resp.Assignments, AssignmentResponse{
			ID:             a.ID,
			TechnicianID:   a.TechnicianID,
			TechnicianName: a.TechnicianName,
			Status:         a.Status,
			StartedAt:      a.StartedAt,
			CompletedAt:    a.CompletedAt,
		})
	}
	return resp
}

// EscalationResponse is one escalation log entry.
type EscalationResponse struct {
	ID           int64                  `json:"id"`
	Level        int                    `json:"level"`
	Kind         model.EscalationKind   `json:"kind"`
	Reason       string                 `json:"reason"`
	Status       model.EscalationStatus `json:"status"`
	RecipientIDs []int64                `json:"recipient_ids"`
	EscalatedAt  time.Time              `json:"escalated_at"`
	ResolvedByID *int64                 `json:"resolved_by_id"`
	ResolvedAt   *time.Time             `json:"resolved_at"`
}

func newEscalationResponse(e model.EscalationLogEntry) EscalationResponse {
	// Stored lists are always written by FormatIDList.
	ids, _ := parse.IDList(e.RecipientIDs)
	if ids == nil {
		ids = []int64{}
	}
	return EscalationResponse{
		ID:           e.ID,
		Level:        e.Level,
		Kind:         e.Kind,
		Reason:       e.Reason,
		Status:       e.Status,
		RecipientIDs: ids,
		EscalatedAt:  e.EscalatedAt,
		ResolvedByID: e.ResolvedByID,
		ResolvedAt:   e.ResolvedAt,
	}
}

// ScheduleResponse is the API form of a maintenance schedule.
type ScheduleResponse struct {
	ID              int64                 `json:"id"`
	Name            string                `json:"name"`
	Kind            model.ScheduleKind    `json:"kind"`
	AssetID         *int64                `json:"asset_id"`
	FacilityID      *int64                `json:"facility_id"`
	BuildingID      *int64                `json:"building_id"`
	FloorID         *int64                `json:"floor_id"`
	RoomID          *int64                `json:"room_id"`
	MaintenanceKind model.MaintenanceKind `json:"maintenance_kind"`
	IntervalCount   int                   `json:"interval_count"`
	IntervalUnit    model.IntervalUnit    `json:"interval_unit"`
	JobPlanID       *int64                `json:"job_plan_id"`
	DefaultPriority model.Priority        `json:"default_priority"`
	LastOccurrence  *time.Time            `json:"last_occurrence"`
	NextOccurrence  *time.Time            `json:"next_occurrence"`
	Status          model.ScheduleStatus  `json:"status"`
	Active          bool                  `json:"active"`
}

func newScheduleResponse(s model.MaintenanceSchedule) ScheduleResponse {
	return ScheduleResponse{
		ID:              s.ID,
		Name:            s.Name,
		Kind:            s.Kind,
		AssetID:         s.AssetID,
		FacilityID:      s.FacilityID,
		BuildingID:      s.BuildingID,
		FloorID:         s.FloorID,
		RoomID:          s.RoomID,
		MaintenanceKind: s.MaintenanceKind,
		IntervalCount:   s.IntervalCount,
		IntervalUnit:    s.IntervalUnit,
		JobPlanID:       s.JobPlanID,
		DefaultPriority: s.DefaultPriority,
		LastOccurrence:  s.LastOccurrence,
		NextOccurrence:  s.NextOccurrence,
		Status:          s.Status,
		Active:          s.Active,
	}
}

// PolicyResponse is the API form of an SLA policy.
type PolicyResponse struct {
	ID                  int64          `json:"id"`
	Name                string         `json:"name"`
	Active              bool           `json:"active"`
	Rank                int            `json:"rank"`
	Priority            model.Priority `json:"priority"`
	ResponseHours       float64        `json:"response_hours"`
	ResolutionHours     float64        `json:"resolution_hours"`
	WarningHours        float64        `json:"warning_hours"`
	EscalationEnabled   bool           `json:"escalation_enabled"`
	EscalationIntervals []float64      `json:"escalation_intervals"`
	MaxEscalationLevel  int            `json:"max_escalation_level"`
	BusinessHoursOnly   bool           `json:"business_hours_only"`
	BusinessStartHour   float64        `json:"business_start_hour"`
	BusinessEndHour     float64        `json:"business_end_hour"`
	IncludeWeekends     bool           `json:"include_weekends"`
	IncludeHolidays     bool           `json:"include_holidays"`
	FacilityIDs         []int64        `json:"facility_ids"`
	RecipientIDs        []int64        `json:"recipient_ids"`
}

func newPolicyResponse(p model.SLAPolicy) PolicyResponse {
	intervals, _ := parse.Intervals(p.EscalationIntervals)
	if intervals == nil {
		intervals = []float64{}
	}
	resp := PolicyResponse{
		ID:                  p.ID,
		Name:                p.Name,
		Active:              p.Active,
		Rank:                p.Rank,
		Priority:            p.Priority,
		ResponseHours:       p.ResponseHours,
		ResolutionHours:     p.ResolutionHours,
		WarningHours:        p.WarningHours,
		EscalationEnabled:   p.EscalationEnabled,
		EscalationIntervals: intervals,
		MaxEscalationLevel:  p.MaxEscalationLevel,
		BusinessHoursOnly:   p.BusinessHoursOnly,
		BusinessStartHour:   p.BusinessStartHour,
		BusinessEndHour:     p.BusinessEndHour,
		IncludeWeekends:     p.IncludeWeekends,
		IncludeHolidays:     p.IncludeHolidays,
		FacilityIDs:         make([]int64, 0, len(p.Facilities)),
		RecipientIDs:        make([]int64, 0, len(p.Recipients)),
	}
	for _, f := range p.Facilities {
		resp.FacilityIDs = append(resp.FacilityIDs, f.ID)
	}
	for _, u := range p.Recipients {
		resp.RecipientIDs = append(resp.RecipientIDs, u.ID)
	}
	return resp
}
