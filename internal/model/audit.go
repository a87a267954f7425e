package model

import "time"

// Auditable is implemented by records that carry a compliance trail.
type Auditable interface {
	AuditSubject() (kind string, id int64)
}

// AuditEntry records who did what, and when, to an Auditable record.
type AuditEntry struct {
	ID          int64  `gorm:"primaryKey"`
	SubjectKind string `gorm:"size:32;not null;index:idx_audit_subject"`
	SubjectID   int64  `gorm:"not null;index:idx_audit_subject"`
	ActorID     *int64
	Action      string    `gorm:"size:64;not null"`
	Note        string    `gorm:"not null"`
	At          time.Time `gorm:"not null"`
}

// NewAuditEntry builds an entry for subject.
func NewAuditEntry(subject Auditable, actorID *int64, at time.Time, action, note string) AuditEntry {
	kind, id := subject.AuditSubject()
	return AuditEntry{
		SubjectKind: kind,
		SubjectID:   id,
		ActorID:     actorID,
		Action:      action,
		Note:        note,
		At:          at,
	}
}
