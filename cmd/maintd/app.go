package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"maintenance-backend/config"
	"maintenance-backend/internal/assign"
	"maintenance-backend/internal/db"
	"maintenance-backend/internal/hours"
	"maintenance-backend/internal/metrics"
	"maintenance-backend/internal/store"
)

// app bundles what every command needs.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	metrics *metrics.Collector
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config/config.yaml"
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func bootstrap() (*app, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	log.Info("configuration loaded", zap.String("path", path))

	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &app{cfg: cfg, log: log, db: gormDB, metrics: metrics.NewCollector()}, nil
}

// storeOptions builds the store options; notifier may be nil.
func (a *app) storeOptions(notifier store.EscalationNotifier) (store.Options, error) {
	policy, err := hours.ParsePolicy(a.cfg.Maintenance.HoursDecreasePolicy)
	if err != nil {
		return store.Options{}, err
	}
	return store.Options{
		Location:    a.cfg.Location(),
		HoursPolicy: policy,
		Assign:      assign.Options{DailyCapacityMinutes: a.cfg.Maintenance.DailyCapacityMinutes},
		Metrics:     a.metrics,
		Notifier:    notifier,
		Logger:      a.log,
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	_ = a.log.Sync()
}
