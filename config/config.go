package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Escalation EscalationConfig `yaml:"escalation"`
	SLA        SLAConfig        `yaml:"sla"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogQueries             bool   `yaml:"log_queries"`
}

// SchedulerConfig controls the periodic batch triggers.
type SchedulerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Timezone       string `yaml:"timezone"`
	GenerateCron   string `yaml:"generate_cron"`
	EscalationCron string `yaml:"escalation_cron"`
}

// EscalationConfig holds the escalation sweep toggle and recipient fallbacks.
type EscalationConfig struct {
	Enabled bool `yaml:"enabled"`
	// DefaultIntervalsHours is used when a policy carries no interval list.
	DefaultIntervalsHours []float64 `yaml:"default_intervals_hours"`
	// LevelRoles maps an escalation level to the roles notified when the
	// policy has no explicit recipients. Levels above the highest key reuse it.
	LevelRoles map[int][]string `yaml:"level_roles"`
}

// SLAConfig holds defaults applied to SLA policies and business calendars.
type SLAConfig struct {
	DefaultWarningHours float64   `yaml:"default_warning_hours"`
	Holidays            []Holiday `yaml:"holidays"`
}

// Holiday is a recurring non-working day for business-hours SLAs.
type Holiday struct {
	Name  string `yaml:"name"`
	Month int    `yaml:"month"`
	Day   int    `yaml:"day"`
}

// LogConfig controls the logrus output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	applyEnv(&cfg)
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, as if an empty
// file had been loaded.
func Default() *Config {
	cfg := Config{
		Scheduler:  SchedulerConfig{Enabled: true},
		Escalation: EscalationConfig{Enabled: true},
	}
	_ = applyDefaults(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func applyDefaults(cfg *Config) error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	switch cfg.Database.Driver {
	case "":
		cfg.Database.Driver = "postgres"
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver %q is not supported", cfg.Database.Driver)
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		logrus.Warn("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 64
	}

	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}
	if cfg.Scheduler.GenerateCron == "" {
		cfg.Scheduler.GenerateCron = "15 0 * * *"
	}
	if cfg.Scheduler.EscalationCron == "" {
		cfg.Scheduler.EscalationCron = "*/15 * * * *"
	}

	if len(cfg.Escalation.DefaultIntervalsHours) == 0 {
		cfg.Escalation.DefaultIntervalsHours = []float64{2, 4, 8}
	}
	for _, h := range cfg.Escalation.DefaultIntervalsHours {
		if h <= 0 {
			return fmt.Errorf("escalation.default_intervals_hours must be positive, got %v", h)
		}
	}
	if len(cfg.Escalation.LevelRoles) == 0 {
		cfg.Escalation.LevelRoles = map[int][]string{
			1: {"facility_manager", "facility_supervisor"},
			2: {"facility_director", "facility_manager"},
		}
	}

	if cfg.SLA.DefaultWarningHours <= 0 {
		cfg.SLA.DefaultWarningHours = 2
	}
	for _, h := range cfg.SLA.Holidays {
		if h.Month < 1 || h.Month > 12 || h.Day < 1 || h.Day > 31 {
			return fmt.Errorf("sla.holidays: invalid date %d-%d for %q", h.Month, h.Day, h.Name)
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return nil
}
