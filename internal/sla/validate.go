package sla

import (
	"fmt"

	"facilities-maintenance-backend/internal/model"
	"facilities-maintenance-backend/internal/parse"
)

// Defaults for fields a new policy leaves empty.
const (
	DefaultResponseHours      = 4
	DefaultResolutionHours    = 24
	DefaultMaxEscalationLevel = 3
	DefaultBusinessStartHour  = 7
	DefaultBusinessEndHour    = 19
)

// ValidationError rejects a policy before it is stored.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Normalize fills defaults on p and validates it.
func Normalize(p *model.SLAPolicy, defaultWarningHours float64) error {
	if p.Name == "" {
		return invalid("policy name is required")
	}
	if p.Priority != "" && !p.Priority.Valid() {
		return invalid("unknown priority %q", p.Priority)
	}
	if p.ResponseHours == 0 {
		p.ResponseHours = DefaultResponseHours
	}
	if p.ResolutionHours == 0 {
		p.ResolutionHours = DefaultResolutionHours
	}
	if p.WarningHours == 0 {
		p.WarningHours = defaultWarningHours
	}
	if p.MaxEscalationLevel == 0 {
		p.MaxEscalationLevel = DefaultMaxEscalationLevel
	}
	if p.BusinessStartHour == 0 && p.BusinessEndHour == 0 {
		p.BusinessStartHour = DefaultBusinessStartHour
		p.BusinessEndHour = DefaultBusinessEndHour
	}

	if p.ResponseHours < 0 || p.ResolutionHours < 0 || p.WarningHours < 0 {
		return invalid("time limits must not be negative")
	}
	if p.ResponseHours >= p.ResolutionHours {
		return invalid("response time (%gh) must be less than resolution time (%gh)", p.ResponseHours, p.ResolutionHours)
	}
	if p.MaxEscalationLevel < 0 {
		return invalid("max escalation level must be greater than zero")
	}
	if _, err := parse.Intervals(p.EscalationIntervals); err != nil {
		return invalid("escalation intervals: %v", err)
	}
	if p.BusinessHoursOnly {
		if p.BusinessStartHour < 0 || p.BusinessEndHour > 24 || p.BusinessStartHour >= p.BusinessEndHour {
			return invalid("business hours %g-%g are not a valid window", p.BusinessStartHour, p.BusinessEndHour)
		}
	}
	return nil
}

// Intervals returns p's escalation intervals in hours, or defaults when the
// policy has none.
func Intervals(p model.SLAPolicy, defaults []float64) []float64 {
	hours, err := parse.Intervals(p.EscalationIntervals)
	if err != nil || len(hours) == 0 {
		return defaults
	}
	return hours
}
