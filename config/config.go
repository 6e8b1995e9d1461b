package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Collector   CollectorConfig   `yaml:"collector"`
	Push        PushConfig        `yaml:"push"`
	WorkerPool  WorkerPoolConfig  `yaml:"worker_pool"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RequestIPHeader string   `yaml:"request_ip_header"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// SchedulerConfig controls the periodic task generation run.
type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
	LookaheadHours  int           `yaml:"lookahead_hours"`
	Lookahead       time.Duration `yaml:"-"`
	Timezone        string        `yaml:"timezone"`
}

// CollectorConfig controls polling operating-hours counters from a machine-data gateway.
type CollectorConfig struct {
	Enabled         bool             `yaml:"enabled"`
	IntervalSeconds int              `yaml:"interval_seconds"`
	Interval        time.Duration    `yaml:"-"`
	HTTPProxy       string           `yaml:"http_proxy"`
	Request         CollectorRequest `yaml:"request"`
}

// CollectorRequest describes the gateway's paged counter endpoint.
type CollectorRequest struct {
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	Payload  map[string]any    `yaml:"payload"`
	PageSize int               `yaml:"page_size"`
}

// MaintenanceConfig holds the domain policies of the maintenance engine.
type MaintenanceConfig struct {
	// HoursDecreasePolicy is one of reject, flag or clamp.
	HoursDecreasePolicy string `yaml:"hours_decrease_policy"`
	// DailyCapacityMinutes caps auto-assigned work per user and day; 0 disables the cap.
	DailyCapacityMinutes int `yaml:"daily_capacity_minutes"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig selects the zap preset.
type LogConfig struct {
	Development bool `yaml:"development"`
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
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
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
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Scheduler.IntervalSeconds <= 0 {
		cfg.Scheduler.IntervalSeconds = 3600
	}
	cfg.Scheduler.Interval = time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second

	if cfg.Scheduler.LookaheadHours <= 0 {
		cfg.Scheduler.LookaheadHours = 24
	}
	cfg.Scheduler.Lookahead = time.Duration(cfg.Scheduler.LookaheadHours) * time.Hour

	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler.timezone %q: %w", cfg.Scheduler.Timezone, err)
	}

	if cfg.Maintenance.HoursDecreasePolicy == "" {
		cfg.Maintenance.HoursDecreasePolicy = "reject"
	}

	if cfg.Collector.IntervalSeconds <= 0 {
		cfg.Collector.IntervalSeconds = 300
	}
	cfg.Collector.Interval = time.Duration(cfg.Collector.IntervalSeconds) * time.Second
	if cfg.Collector.Request.PageSize <= 0 {
		cfg.Collector.Request.PageSize = 100
	}
	if cfg.Collector.Enabled && cfg.Collector.Request.URL == "" {
		return fmt.Errorf("collector.request.url is required when the collector is enabled")
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	return nil
}

// Location returns the scheduler timezone. Load has already validated it.
func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
