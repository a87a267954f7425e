package model

import "time"

// EscalationLogEntry is an append-only record of one escalation step.
// Only Status, ResolvedByID and ResolvedAt are ever updated after insert.
type EscalationLogEntry struct {
	ID           int64 `gorm:"primaryKey"`
	WorkOrderID  int64 `gorm:"index;not null"`
	PolicyID     *int64
	Level        int              `gorm:"not null"`
	Kind         EscalationKind   `gorm:"size:24;not null"`
	Reason       string           `gorm:"not null"`
	Status       EscalationStatus `gorm:"size:16;not null;index"`
	RecipientIDs string           `gorm:"size:512"`
	DeliveryKey  string           `gorm:"size:36;uniqueIndex"`
	EscalatedAt  time.Time        `gorm:"not null;index"`
	ResolvedByID *int64
	ResolvedAt   *time.Time
	CreatedAt    time.Time
}
