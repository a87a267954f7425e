package sla

import (
	"time"

	"github.com/rickar/cal/v2"

	"facilities-maintenance-backend/internal/model"
)

// Holiday is a recurring non-working day.
type Holiday struct {
	Name  string
	Month time.Month
	Day   int
}

// Calculator computes deadlines, on a business calendar when a policy asks
// for business hours only.
type Calculator struct {
	loc      *time.Location
	holidays []*cal.Holiday
}

// NewCalculator creates a Calculator whose business hours are read in loc.
func NewCalculator(loc *time.Location, holidays []Holiday) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	c := &Calculator{loc: loc}
	for _, h := range holidays {
		c.holidays = append(c.holidays, &cal.Holiday{
			Name:  h.Name,
			Type:  cal.ObservancePublic,
			Month: h.Month,
			Day:   h.Day,
			Func:  cal.CalcDayOfMonth,
		})
	}
	return c
}

// Deadlines returns the response and resolution deadlines of a work order
// created at created under policy p.
func (c *Calculator) Deadlines(p model.SLAPolicy, created time.Time) (response, resolution time.Time) {
	respond := hours(p.ResponseHours)
	resolve := hours(p.ResolutionHours)

	if !p.BusinessHoursOnly {
		return created.Add(respond), created.Add(resolve)
	}

	bc := c.calendar(p)
	local := created.In(c.loc)
	return bc.AddWorkHours(local, respond).UTC(), bc.AddWorkHours(local, resolve).UTC()
}

// IsWorkTime reports whether t falls inside p's business hours.
func (c *Calculator) IsWorkTime(p model.SLAPolicy, t time.Time) bool {
	if !p.BusinessHoursOnly {
		return true
	}
	return c.calendar(p).IsWorkTime(t.In(c.loc))
}

func (c *Calculator) calendar(p model.SLAPolicy) *cal.BusinessCalendar {
	bc := cal.NewBusinessCalendar()
	bc.SetWorkHours(hours(p.BusinessStartHour), hours(p.BusinessEndHour))
	if p.IncludeWeekends {
		bc.SetWorkday(time.Saturday, true)
		bc.SetWorkday(time.Sunday, true)
	}
	if !p.IncludeHolidays {
		bc.AddHoliday(c.holidays...)
	}
	return bc
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
