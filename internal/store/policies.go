package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"facilities-maintenance-backend/internal/model"
)

func preloadPolicyScope(db *gorm.DB) *gorm.DB {
	return db.Preload("Facilities").Preload("Recipients", "active = ?", true)
}

func (s *gormStore) ActivePolicies(ctx context.Context) ([]model.SLAPolicy, error) {
	var policies []model.SLAPolicy
	err := preloadPolicyScope(s.db.WithContext(ctx)).
		Where("active = ?", true).
		Order("rank DESC, id").
		Find(&policies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active SLA policies: %w", err)
	}
	return policies, nil
}

func (s *gormStore) ListPolicies(ctx context.Context) ([]model.SLAPolicy, error) {
	var policies []model.SLAPolicy
	if err := preloadPolicyScope(s.db.WithContext(ctx)).Order("id").Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("failed to list SLA policies: %w", err)
	}
	return policies, nil
}

func (s *gormStore) GetPolicy(ctx context.Context, id int64) (*model.SLAPolicy, error) {
	var p model.SLAPolicy
	if err := preloadPolicyScope(s.db.WithContext(ctx)).First(&p, id).Error; err != nil {
		return nil, notFound(err, "SLA policy", id)
	}
	return &p, nil
}

// SavePolicy creates or updates p and replaces its facility and recipient sets.
func (s *gormStore) SavePolicy(ctx context.Context, p *model.SLAPolicy, facilityIDs, recipientIDs []int64, audit model.AuditEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var facilities []model.Facility
		if len(facilityIDs) > 0 {
			if err := tx.Find(&facilities, facilityIDs).Error; err != nil {
				return err
			}
			if len(facilities) != len(facilityIDs) {
				return fmt.Errorf("unknown facility in %v: %w", facilityIDs, ErrNotFound)
			}
		}
		var recipients []model.User
		if len(recipientIDs) > 0 {
			if err := tx.Find(&recipients, recipientIDs).Error; err != nil {
				return err
			}
			if len(recipients) != len(recipientIDs) {
				return fmt.Errorf("unknown recipient in %v: %w", recipientIDs, ErrNotFound)
			}
		}

		if err := tx.Omit("Facilities", "Recipients").Save(p).Error; err != nil {
			return fmt.Errorf("failed to save SLA policy %q: %w", p.Name, err)
		}
		if err := tx.Model(p).Association("Facilities").Replace(&facilities); err != nil {
			return fmt.Errorf("failed to set facilities of SLA policy %d: %w", p.ID, err)
		}
		if err := tx.Model(p).Association("Recipients").Replace(&recipients); err != nil {
			return fmt.Errorf("failed to set recipients of SLA policy %d: %w", p.ID, err)
		}

		audit.SubjectKind, audit.SubjectID = p.AuditSubject()
		return tx.Create(&audit).Error
	})
}

func (s *gormStore) DeactivatePolicy(ctx context.Context, id int64, audit model.AuditEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.SLAPolicy{}).Where("id = ?", id).Update("active", false)
		if res.Error != nil {
			return fmt.Errorf("failed to deactivate SLA policy %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("SLA policy %d: %w", id, ErrNotFound)
		}
		audit.SubjectKind, audit.SubjectID = model.SLAPolicy{ID: id}.AuditSubject()
		return tx.Create(&audit).Error
	})
}
