package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"facilities-maintenance-backend/internal/model"
)

func preloadChecklist(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("sequence, id") }).
		Preload("Sections.Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sequence, id") }).
		Preload("Assignments", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

// CreateWorkOrder numbers and inserts wo with its checklist and assignments,
// and records audit against it, in one transaction.
func (s *gormStore) CreateWorkOrder(ctx context.Context, wo *model.WorkOrder, audit model.AuditEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ref, err := nextReference(tx, wo.CreatedAt)
		if err != nil {
			return err
		}
		wo.Reference = ref

		if err := tx.Create(wo).Error; err != nil {
			return fmt.Errorf("failed to create work order %s: %w", ref, err)
		}
		audit.SubjectKind, audit.SubjectID = wo.AuditSubject()
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to audit work order %s: %w", ref, err)
		}
		return nil
	})
}

// nextReference allocates WO-<year>-<n> from a per-year counter.
func nextReference(tx *gorm.DB, at time.Time) (string, error) {
	prefix := fmt.Sprintf("WO-%d-", at.Year())
	seq := model.ReferenceSequence{Prefix: prefix, Value: 1}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "prefix"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value": gorm.Expr("reference_sequences.value + 1"),
		}),
	}).Create(&seq).Error
	if err != nil {
		return "", fmt.Errorf("failed to allocate reference for %s: %w", prefix, err)
	}
	if err := tx.Where("prefix = ?", prefix).First(&seq).Error; err != nil {
		return "", fmt.Errorf("failed to read reference for %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s%05d", prefix, seq.Value), nil
}

func (s *gormStore) GetWorkOrder(ctx context.Context, id int64) (*model.WorkOrder, error) {
	var wo model.WorkOrder
	if err := preloadChecklist(s.db.WithContext(ctx)).First(&wo, id).Error; err != nil {
		return nil, notFound(err, "work order", id)
	}
	return &wo, nil
}

// UpdateWorkOrder applies u only if the work order is still in
// u.ExpectedState. A lost race returns ErrConflict and writes nothing.
func (s *gormStore) UpdateWorkOrder(ctx context.Context, id int64, u WorkOrderUpdate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := make(map[string]any, len(u.Fields)+1)
		for k, v := range u.Fields {
			fields[k] = v
		}
		if u.BumpVersion {
			fields["version"] = gorm.Expr("version + 1")
		}

		if len(fields) > 0 {
			res := tx.Model(&model.WorkOrder{}).
				Where("id = ? AND state = ?", id, u.ExpectedState).
				Updates(fields)
			if res.Error != nil {
				return fmt.Errorf("failed to update work order %d: %w", id, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("work order %d is no longer %s: %w", id, u.ExpectedState, ErrConflict)
			}
		}

		if u.NewAssignment != nil {
			u.NewAssignment.WorkOrderID = id
			if err := tx.Create(u.NewAssignment).Error; err != nil {
				return fmt.Errorf("failed to add assignment to work order %d: %w", id, err)
			}
		}
		if u.Audit != nil {
			u.Audit.SubjectKind, u.Audit.SubjectID = model.WorkOrder{ID: id}.AuditSubject()
			if err := tx.Create(u.Audit).Error; err != nil {
				return fmt.Errorf("failed to audit work order %d: %w", id, err)
			}
		}
		return nil
	})
}

// ExistsOpenWorkOrder implements the duplicate check used by generation.
func (s *gormStore) ExistsOpenWorkOrder(ctx context.Context, q DuplicateQuery) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.WorkOrder{}).
		Where("schedule_id = ? AND asset_id = ? AND kind = ?", q.ScheduleID, q.AssetID, q.Kind).
		Where("state NOT IN ?", model.TerminalStates).
		Where("scheduled_date >= ? AND scheduled_date <= ?", q.From, q.To).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate work orders: %w", err)
	}
	return n > 0, nil
}

// OpenWorkOrdersWithSLA returns every non-terminal work order carrying an SLA.
func (s *gormStore) OpenWorkOrdersWithSLA(ctx context.Context) ([]model.WorkOrder, error) {
	var wos []model.WorkOrder
	err := s.db.WithContext(ctx).
		Where("sla_policy_id IS NOT NULL").
		Where("state NOT IN ?", model.TerminalStates).
		Order("id").
		Find(&wos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open work orders: %w", err)
	}
	return wos, nil
}

// UpdateAssignment saves a technician assignment's sub-status.
func (s *gormStore) UpdateAssignment(ctx context.Context, a *model.TechnicianAssignment, audit model.AuditEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TechnicianAssignment{}).
			Where("id = ? AND work_order_id = ?", a.ID, a.WorkOrderID).
			Updates(map[string]any{
				"status":       a.Status,
				"started_at":   a.StartedAt,
				"completed_at": a.CompletedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update assignment %d: %w", a.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("assignment %d: %w", a.ID, ErrNotFound)
		}
		audit.SubjectKind, audit.SubjectID = model.WorkOrder{ID: a.WorkOrderID}.AuditSubject()
		return tx.Create(&audit).Error
	})
}

// SetTaskDone toggles a checklist task that belongs to the work order.
func (s *gormStore) SetTaskDone(ctx context.Context, workOrderID, taskID int64, done bool, at time.Time) error {
	var doneAt *time.Time
	if done {
		doneAt = &at
	}
	res := s.db.WithContext(ctx).Model(&model.WorkOrderTask{}).
		Where("id = ?", taskID).
		Where("section_id IN (?)", s.db.Model(&model.WorkOrderSection{}).Select("id").Where("work_order_id = ?", workOrderID)).
		Updates(map[string]any{"done": done, "done_at": doneAt})
	if res.Error != nil {
		return fmt.Errorf("failed to update task %d: %w", taskID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d on work order %d: %w", taskID, workOrderID, ErrNotFound)
	}
	return nil
}

// MarkBreached stamps the first observed breach time.
func (s *gormStore) MarkBreached(ctx context.Context, workOrderID int64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.WorkOrder{}).
		Where("id = ? AND sla_breached_at IS NULL", workOrderID).
		Update("sla_breached_at", at).Error
}
