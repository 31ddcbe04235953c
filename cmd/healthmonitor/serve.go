package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/M-Affan01/HealthMonitor/internal/config"
	"github.com/M-Affan01/HealthMonitor/internal/domain/monitoring"
	"github.com/M-Affan01/HealthMonitor/internal/domain/risk"
	"github.com/M-Affan01/HealthMonitor/internal/platform/auth"
	"github.com/M-Affan01/HealthMonitor/internal/platform/db"
	"github.com/M-Affan01/HealthMonitor/internal/platform/events"
	"github.com/M-Affan01/HealthMonitor/internal/platform/metrics"
	"github.com/M-Affan01/HealthMonitor/internal/platform/middleware"
	"github.com/M-Affan01/HealthMonitor/internal/platform/mqtt"
	"github.com/M-Affan01/HealthMonitor/internal/platform/webhook"
	"github.com/M-Affan01/HealthMonitor/internal/platform/websocket"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Background workers stop when ctx is cancelled on shutdown.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cfg, pool, logger, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info().Str("env", cfg.Env).Msg("connected to database")

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	// Event fan-out
	hub := websocket.NewHub(logger)
	fanout := events.NewFanout(logger, hub)
	if cfg.RedisURL != "" {
		rdb, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		fanout.Add(events.NewRedisStreamPublisher(rdb, cfg.EventStream, cfg.EventStreamMaxLen))
		logger.Info().Str("stream", cfg.EventStream).Msg("publishing events to redis stream")
	}
	if cfg.AlertWebhookURL != "" {
		notifier := webhook.NewNotifier(cfg.AlertWebhookURL, cfg.AlertWebhookSecret, logger)
		fanout.Add(notifier)
		go notifier.Run(ctx)
		logger.Info().Msg("critical alert webhook enabled")
	}

	eng, err := newEngine(cfg, pool, fanout, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build engine")
	}
	// Materialise the threshold singleton so a bad profile surfaces at boot.
	if _, err := eng.thresholds.Get(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to load thresholds")
	}

	// Device ingestion
	if cfg.MQTTBroker != "" {
		sub := mqtt.NewSubscriber(mqtt.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			QoS:      1,
		}, monitoring.DeviceHandler(eng.svc), logger)
		if err := sub.Start(ctx); err != nil {
			logger.Error().Err(err).Str("broker", cfg.MQTTBroker).Msg("mqtt subscription failed, device ingestion disabled")
		}
	}

	// Scheduled risk sweep
	if cfg.RiskSweepSchedule != "" {
		sweeper := risk.NewSweeper(eng.patients, sweepRecompute(eng.svc), cfg.RiskSweepConcurrency, logger)
		if err := sweeper.Start(ctx, cfg.RiskSweepSchedule); err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.RiskSweepSchedule).Msg("invalid risk sweep schedule")
		}
	}

	e := newRouter(cfg, eng.svc, hub, m, db.HealthHandler(pool), logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// sweepRecompute adapts the service to the sweeper, running as a system
// actor.
func sweepRecompute(svc *monitoring.Service) risk.RecomputeFunc {
	actor := auth.SystemActor("risk-sweeper")
	return func(ctx context.Context, id uuid.UUID) error {
		_, err := svc.RecomputeRisk(ctx, actor, id)
		return err
	}
}

// newRouter builds the HTTP surface. Health and metrics endpoints are
// unauthenticated; everything under /api/v1 requires a token outside
// development.
func newRouter(cfg *config.Config, svc *monitoring.Service, hub *websocket.Hub, m *metrics.Metrics,
	dbHealth echo.HandlerFunc, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderXRequestID},
	}))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	authMW := auth.DevAuthMiddleware()
	if !cfg.IsDev() {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.JWTSigningKey),
		})
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", dbHealth)
	if m != nil {
		e.GET("/metrics", m.Handler())
	}

	apiV1 := e.Group("/api/v1", authMW)
	monitoring.NewHandler(svc).RegisterRoutes(apiV1)
	websocket.NewHandler(hub).RegisterRoutes(apiV1)

	return e
}
