package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"facilities-maintenance-backend/internal/model"
)

// generatableStatuses are the schedule statuses the generator picks up.
var generatableStatuses = []model.ScheduleStatus{model.SchedulePlanned, model.ScheduleDone}

func preloadJobPlan(db *gorm.DB) *gorm.DB {
	return db.
		Preload("JobPlan").
		Preload("JobPlan.Sections", func(db *gorm.DB) *gorm.DB { return db.Order("sequence, id") }).
		Preload("JobPlan.Sections.Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sequence, id") })
}

func (s *gormStore) CreateSchedule(ctx context.Context, sched *model.MaintenanceSchedule, audit model.AuditEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("JobPlan").Create(sched).Error; err != nil {
			return fmt.Errorf("failed to create schedule %q: %w", sched.Name, err)
		}
		audit.SubjectKind, audit.SubjectID = sched.AuditSubject()
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to audit schedule %d: %w", sched.ID, err)
		}
		return nil
	})
}

func (s *gormStore) GetSchedule(ctx context.Context, id int64) (*model.MaintenanceSchedule, error) {
	var sched model.MaintenanceSchedule
	if err := preloadJobPlan(s.db.WithContext(ctx)).First(&sched, id).Error; err != nil {
		return nil, notFound(err, "schedule", id)
	}
	return &sched, nil
}

// DueSchedules returns active preventive schedules whose next occurrence is
// not after now.
func (s *gormStore) DueSchedules(ctx context.Context, now time.Time) ([]model.MaintenanceSchedule, error) {
	var schedules []model.MaintenanceSchedule
	err := preloadJobPlan(s.db.WithContext(ctx)).
		Where("active = ?", true).
		Where("maintenance_kind = ?", model.KindPreventive).
		Where("next_occurrence IS NOT NULL AND next_occurrence <= ?", now).
		Where("status IN ?", generatableStatuses).
		Order("next_occurrence, id").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}
	return schedules, nil
}

// AdvanceSchedule moves a schedule whose next occurrence is still from to
// (last, next). It reports false when the row is missing or another run has
// already moved it.
func (s *gormStore) AdvanceSchedule(ctx context.Context, id int64, from, last *time.Time, next time.Time) (bool, error) {
	q := s.db.WithContext(ctx).Model(&model.MaintenanceSchedule{}).Where("id = ?", id)
	if from == nil {
		q = q.Where("next_occurrence IS NULL")
	} else {
		q = q.Where("next_occurrence = ?", *from)
	}
	res := q.Updates(map[string]any{
		"last_occurrence": last,
		"next_occurrence": next,
	})
	if res.Error != nil {
		return false, fmt.Errorf("failed to advance schedule %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) CountActiveSchedules(ctx context.Context, assetID int64, kind model.MaintenanceKind, excludeID int64) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&model.MaintenanceSchedule{}).
		Where("active = ? AND asset_id = ? AND maintenance_kind = ?", true, assetID, kind)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count schedules for asset %d: %w", assetID, err)
	}
	return n, nil
}

func (s *gormStore) DeactivateSchedule(ctx context.Context, id int64, audit model.AuditEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.MaintenanceSchedule{}).Where("id = ?", id).Update("active", false)
		if res.Error != nil {
			return fmt.Errorf("failed to deactivate schedule %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("schedule %d: %w", id, ErrNotFound)
		}
		audit.SubjectKind, audit.SubjectID = model.MaintenanceSchedule{ID: id}.AuditSubject()
		return tx.Create(&audit).Error
	})
}
