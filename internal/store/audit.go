package store

import (
	"context"
	"fmt"

	"facilities-maintenance-backend/internal/model"
)

func (s *gormStore) AddAuditEntry(ctx context.Context, e *model.AuditEntry) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to write audit entry for %s %d: %w", e.SubjectKind, e.SubjectID, err)
	}
	return nil
}

func (s *gormStore) AuditTrail(ctx context.Context, subject model.Auditable) ([]model.AuditEntry, error) {
	kind, id := subject.AuditSubject()
	var entries []model.AuditEntry
	err := s.db.WithContext(ctx).
		Where("subject_kind = ? AND subject_id = ?", kind, id).
		Order("at, id").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail for %s %d: %w", kind, id, err)
	}
	return entries, nil
}
