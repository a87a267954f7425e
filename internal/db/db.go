package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"facilities-maintenance-backend/config"
	"facilities-maintenance-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		dialector = postgres.Open(cfg.DSN)
	}

	level := logger.Warn
	if cfg.LogQueries {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logrus.WithField("driver", cfg.Driver).Info("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates every table and the partial indexes gorm tags
// cannot express.
func Migrate(db *gorm.DB) error {
	logrus.Info("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Facility{},
		&model.Building{},
		&model.Floor{},
		&model.Room{},
		&model.Asset{},
		&model.User{},
		&model.PushSubscription{},
		&model.JobPlan{},
		&model.JobPlanSection{},
		&model.JobPlanTask{},
		&model.MaintenanceSchedule{},
		&model.WorkOrder{},
		&model.WorkOrderSection{},
		&model.WorkOrderTask{},
		&model.TechnicianAssignment{},
		&model.ReferenceSequence{},
		&model.SLAPolicy{},
		&model.EscalationLogEntry{},
		&model.AuditEntry{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return applyIndexDDL(db)
}

func applyIndexDDL(db *gorm.DB) error {
	ddls := []string{
		// At most one active schedule per asset and maintenance kind.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_schedules_active_asset_kind " +
			"ON maintenance_schedules (asset_id, maintenance_kind) WHERE active AND asset_id IS NOT NULL;",
		// Escalation sweep scan.
		"CREATE INDEX IF NOT EXISTS idx_work_orders_open_sla " +
			"ON work_orders (state) WHERE sla_policy_id IS NOT NULL;",
		"CREATE INDEX IF NOT EXISTS idx_work_orders_duplicate " +
			"ON work_orders (schedule_id, asset_id, kind, scheduled_date);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
