package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/M-Affan01/HealthMonitor/internal/config"
	"github.com/M-Affan01/HealthMonitor/internal/domain/alert"
	"github.com/M-Affan01/HealthMonitor/internal/domain/monitoring"
	"github.com/M-Affan01/HealthMonitor/internal/domain/patient"
	"github.com/M-Affan01/HealthMonitor/internal/domain/risk"
	"github.com/M-Affan01/HealthMonitor/internal/domain/threshold"
	"github.com/M-Affan01/HealthMonitor/internal/domain/vitals"
	"github.com/M-Affan01/HealthMonitor/internal/platform/db"
	"github.com/M-Affan01/HealthMonitor/internal/platform/events"
	"github.com/M-Affan01/HealthMonitor/internal/platform/metrics"
)

// engine bundles the repositories and services built on one pool.
type engine struct {
	patients   patient.Repository
	thresholds *threshold.Store
	svc        *monitoring.Service
	logger     zerolog.Logger
}

func newEngine(cfg *config.Config, pool *pgxpool.Pool, pub events.Publisher, m *metrics.Metrics, logger zerolog.Logger) (*engine, error) {
	defaults, err := threshold.DefaultsWithProfile(cfg.ThresholdProfile)
	if err != nil {
		return nil, err
	}

	patientRepo := patient.NewRepoPG(pool)
	vitalsRepo := vitals.NewRepoPG(pool)
	alertRepo := alert.NewRepoPG(pool)
	txRunner := db.NewTxRunner(pool)

	store := threshold.NewStore(threshold.NewRepoPG(pool), defaults, logger)
	scorer := risk.NewScorer(patientRepo, vitalsRepo, alertRepo, txRunner, m, logger)

	svc := monitoring.NewService(monitoring.Deps{
		Patients:   patientRepo,
		Vitals:     vitalsRepo,
		Alerts:     alertRepo,
		Thresholds: store,
		Risk:       scorer,
		Tx:         txRunner,
		Publisher:  pub,
		Metrics:    m,
		Logger:     logger,
	})
	return &engine{patients: patientRepo, thresholds: store, svc: svc, logger: logger}, nil
}
