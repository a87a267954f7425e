package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"facilities-maintenance-backend/internal/model"
)

// ApplyEscalation moves a work order from fromLevel to entry.Level and appends
// entry, in one transaction. It returns false without writing when the stored
// level is no longer fromLevel, which makes overlapping sweeps harmless.
func (s *gormStore) ApplyEscalation(ctx context.Context, workOrderID int64, fromLevel int, entry *model.EscalationLogEntry, audit model.AuditEntry) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]any{
			"escalation_level":     entry.Level,
			"escalation_triggered": true,
			"escalation_count":     gorm.Expr("escalation_count + ?", 1),
		}
		if entry.Kind != model.EscalationWarning {
			fields["sla_breached_at"] = gorm.Expr("COALESCE(sla_breached_at, ?)", entry.EscalatedAt)
		}

		res := tx.Model(&model.WorkOrder{}).
			Where("id = ? AND escalation_level = ?", workOrderID, fromLevel).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("failed to raise escalation level of work order %d: %w", workOrderID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		entry.WorkOrderID = workOrderID
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append escalation entry for work order %d: %w", workOrderID, err)
		}
		audit.SubjectKind, audit.SubjectID = model.WorkOrder{ID: workOrderID}.AuditSubject()
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to audit escalation of work order %d: %w", workOrderID, err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// EscalationHistory returns the log of a work order, oldest first.
func (s *gormStore) EscalationHistory(ctx context.Context, workOrderID int64) ([]model.EscalationLogEntry, error) {
	var entries []model.EscalationLogEntry
	err := s.db.WithContext(ctx).
		Where("work_order_id = ?", workOrderID).
		Order("level, escalated_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load escalations of work order %d: %w", workOrderID, err)
	}
	return entries, nil
}

// ResolveEscalations marks every unresolved entry of a work order resolved.
func (s *gormStore) ResolveEscalations(ctx context.Context, workOrderID int64, resolverID *int64, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.EscalationLogEntry{}).
		Where("work_order_id = ? AND status <> ?", workOrderID, model.EscalationResolved).
		Updates(map[string]any{
			"status":         model.EscalationResolved,
			"resolved_by_id": resolverID,
			"resolved_at":    at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to resolve escalations of work order %d: %w", workOrderID, res.Error)
	}
	return res.RowsAffected, nil
}
