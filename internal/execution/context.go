// Package execution carries the actor, clock and tenant into engine calls.
package execution

import (
	"time"

	"facilities-maintenance-backend/internal/model"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

// Now implements Clock.
func (c FixedClock) Now() time.Time { return c.T }

// Context identifies who is acting, on whose behalf, and at what time.
// An ActorID of zero is the system itself. Location decides which calendar
// day Today falls on; nil means UTC.
type Context struct {
	ActorID  int64
	Roles    []string
	Tenant   string
	Clock    Clock
	Location *time.Location
}

// System returns a context for batch jobs.
func System(clock Clock) Context {
	return Context{Clock: clock, Tenant: "default"}
}

// ForUser returns a context acting as u.
func ForUser(u model.User, clock Clock) Context {
	return Context{
		ActorID: u.ID,
		Roles:   u.RoleList(),
		Tenant:  "default",
		Clock:   clock,
	}
}

// Now returns the context's current time, falling back to the wall clock.
func (c Context) Now() time.Time {
	if c.Clock == nil {
		return SystemClock{}.Now()
	}
	return c.Clock.Now()
}

// Today returns the current calendar day in the context's location, as a
// UTC midnight like every stored occurrence date.
func (c Context) Today() time.Time {
	now := c.Now()
	if c.Location != nil {
		now = now.In(c.Location)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// In returns a copy of c whose days follow loc.
func (c Context) In(loc *time.Location) Context {
	c.Location = loc
	return c
}

// Actor returns the actor id for audit records, nil for the system.
func (c Context) Actor() *int64 {
	if c.ActorID == 0 {
		return nil
	}
	id := c.ActorID
	return &id
}

// HasRole reports whether the actor carries any of roles.
func (c Context) HasRole(roles ...string) bool {
	for _, have := range c.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
