package model

import "time"

// JobPlan is a reusable checklist template for preventive work.
type JobPlan struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"size:256;not null"`
	Code        string `gorm:"size:64;index"`
	Description string
	Active      bool `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Sections []JobPlanSection `gorm:"foreignKey:JobPlanID"`
}

// JobPlanSection groups ordered tasks within a job plan.
type JobPlanSection struct {
	ID        int64  `gorm:"primaryKey"`
	JobPlanID int64  `gorm:"index;not null"`
	Name      string `gorm:"size:256;not null"`
	Sequence  int    `gorm:"not null"`

	Tasks []JobPlanTask `gorm:"foreignKey:SectionID"`
}

// JobPlanTask is one step of a job plan section.
type JobPlanTask struct {
	ID              int64  `gorm:"primaryKey"`
	SectionID       int64  `gorm:"index;not null"`
	Name            string `gorm:"size:256;not null"`
	Sequence        int    `gorm:"not null"`
	Description     string
	IsChecklistItem bool    `gorm:"not null"`
	DurationHours   float64 `gorm:"not null"`
	ToolsMaterials  string
}

// TotalHours sums the durations of every task in the plan.
func (p JobPlan) TotalHours() float64 {
	var total float64
	for _, s := range p.Sections {
		for _, t := range s.Tasks {
			total += t.DurationHours
		}
	}
	return total
}

// TaskCount returns the number of tasks across all sections.
func (p JobPlan) TaskCount() int {
	n := 0
	for _, s := range p.Sections {
		n += len(s.Tasks)
	}
	return n
}
