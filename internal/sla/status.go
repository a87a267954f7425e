package sla

import (
	"time"

	"facilities-maintenance-backend/internal/model"
)

// Status is the evaluated standing of one deadline.
type Status string

const (
	StatusOnTime    Status = "on_time"
	StatusAtRisk    Status = "at_risk"
	StatusBreached  Status = "breached"
	StatusCompleted Status = "completed"
)

// Evaluate classifies deadline at now. A nil deadline is on time.
func Evaluate(now time.Time, deadline *time.Time, warning time.Duration, state model.WorkOrderState) Status {
	if state == model.StateCompleted {
		return StatusCompleted
	}
	if deadline == nil || deadline.IsZero() {
		return StatusOnTime
	}
	if now.After(*deadline) {
		return StatusBreached
	}
	if !now.Before(deadline.Add(-warning)) {
		return StatusAtRisk
	}
	return StatusOnTime
}

// Report is the evaluated SLA standing of a work order.
type Report struct {
	Response           Status     `json:"response_status"`
	Resolution         Status     `json:"resolution_status"`
	ResponseDeadline   *time.Time `json:"response_deadline,omitempty"`
	ResolutionDeadline *time.Time `json:"resolution_deadline,omitempty"`
	BreachedAt         *time.Time `json:"breached_at,omitempty"`
	EscalationLevel    int        `json:"escalation_level"`
}

// Inspect evaluates both deadlines of wo with the given warning window.
func Inspect(wo model.WorkOrder, warningHours float64, now time.Time) Report {
	warning := hours(warningHours)
	return Report{
		Response:           Evaluate(now, wo.ResponseDeadline, warning, wo.State),
		Resolution:         Evaluate(now, wo.ResolutionDeadline, warning, wo.State),
		ResponseDeadline:   wo.ResponseDeadline,
		ResolutionDeadline: wo.ResolutionDeadline,
		BreachedAt:         wo.SLABreachedAt,
		EscalationLevel:    wo.EscalationLevel,
	}
}

// Breached reports whether either deadline is breached.
func (r Report) Breached() bool {
	return r.Response == StatusBreached || r.Resolution == StatusBreached
}
