package model

import "time"

// SLAPolicy defines response and resolution limits for a scope of work.
// An empty Priority or an empty Facilities set matches any.
type SLAPolicy struct {
	ID     int64  `gorm:"primaryKey"`
	Name   string `gorm:"size:128;not null"`
	Active bool   `gorm:"not null;index"`
	// Rank orders equally specific candidates, higher first.
	Rank     int      `gorm:"not null"`
	Priority Priority `gorm:"size:16"`

	ResponseHours   float64 `gorm:"not null"`
	ResolutionHours float64 `gorm:"not null"`
	WarningHours    float64 `gorm:"not null"`

	EscalationEnabled   bool   `gorm:"not null"`
	EscalationIntervals string `gorm:"size:128"` // hours, comma separated
	MaxEscalationLevel  int    `gorm:"not null"`

	BusinessHoursOnly bool    `gorm:"not null"`
	BusinessStartHour float64 `gorm:"not null"`
	BusinessEndHour   float64 `gorm:"not null"`
	IncludeWeekends   bool    `gorm:"not null"`
	IncludeHolidays   bool    `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Facilities []Facility `gorm:"many2many:sla_policy_facilities;"`
	Recipients []User     `gorm:"many2many:sla_policy_recipients;"`
}

// TableName keeps the acronym intact.
func (SLAPolicy) TableName() string { return "sla_policies" }

// AuditSubject implements Auditable.
func (p SLAPolicy) AuditSubject() (string, int64) {
	return "sla_policy", p.ID
}

// CoversFacility reports whether the policy lists facilityID explicitly.
func (p SLAPolicy) CoversFacility(facilityID int64) bool {
	for _, f := range p.Facilities {
		if f.ID == facilityID {
			return true
		}
	}
	return false
}
