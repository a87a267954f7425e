package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"facilities-maintenance-backend/internal/location"
	"facilities-maintenance-backend/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional update matched no row because
	// the record changed since it was read.
	ErrConflict = errors.New("record was modified concurrently")
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Registry
	GetAsset(ctx context.Context, id int64) (*model.Asset, error)
	ActiveAssets(ctx context.Context) ([]model.Asset, error)
	LocationTree(ctx context.Context) (location.Tree, error)

	// Identity
	GetUser(ctx context.Context, id int64) (*model.User, error)
	UsersByIDs(ctx context.Context, ids []int64) ([]model.User, error)
	ActiveUsers(ctx context.Context) ([]model.User, error)
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForUsers(ctx context.Context, userIDs []int64) ([]model.PushSubscription, error)

	// Schedules
	CreateSchedule(ctx context.Context, s *model.MaintenanceSchedule, audit model.AuditEntry) error
	GetSchedule(ctx context.Context, id int64) (*model.MaintenanceSchedule, error)
	DueSchedules(ctx context.Context, now time.Time) ([]model.MaintenanceSchedule, error)
	AdvanceSchedule(ctx context.Context, id int64, from, last *time.Time, next time.Time) (bool, error)
	CountActiveSchedules(ctx context.Context, assetID int64, kind model.MaintenanceKind, excludeID int64) (int64, error)
	DeactivateSchedule(ctx context.Context, id int64, audit model.AuditEntry) error

	// Work orders
	CreateWorkOrder(ctx context.Context, wo *model.WorkOrder, audit model.AuditEntry) error
	GetWorkOrder(ctx context.Context, id int64) (*model.WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, id int64, u WorkOrderUpdate) error
	ExistsOpenWorkOrder(ctx context.Context, q DuplicateQuery) (bool, error)
	OpenWorkOrdersWithSLA(ctx context.Context) ([]model.WorkOrder, error)
	UpdateAssignment(ctx context.Context, a *model.TechnicianAssignment, audit model.AuditEntry) error
	SetTaskDone(ctx context.Context, workOrderID, taskID int64, done bool, at time.Time) error
	MarkBreached(ctx context.Context, workOrderID int64, at time.Time) error

	// Escalations
	ApplyEscalation(ctx context.Context, workOrderID int64, fromLevel int, entry *model.EscalationLogEntry, audit model.AuditEntry) (bool, error)
	EscalationHistory(ctx context.Context, workOrderID int64) ([]model.EscalationLogEntry, error)
	ResolveEscalations(ctx context.Context, workOrderID int64, resolverID *int64, at time.Time) (int64, error)

	// SLA policies
	ActivePolicies(ctx context.Context) ([]model.SLAPolicy, error)
	ListPolicies(ctx context.Context) ([]model.SLAPolicy, error)
	GetPolicy(ctx context.Context, id int64) (*model.SLAPolicy, error)
	SavePolicy(ctx context.Context, p *model.SLAPolicy, facilityIDs, recipientIDs []int64, audit model.AuditEntry) error
	DeactivatePolicy(ctx context.Context, id int64, audit model.AuditEntry) error

	// Audit
	AddAuditEntry(ctx context.Context, e *model.AuditEntry) error
	AuditTrail(ctx context.Context, subject model.Auditable) ([]model.AuditEntry, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle for handlers that need ad-hoc queries.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// notFound maps gorm's sentinel to ErrNotFound.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", what, id, err)
}
