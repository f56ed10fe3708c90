package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/frontdesk-api/internal/bootstrap"
	"github.com/jwalitptl/frontdesk-api/internal/config"
	"github.com/jwalitptl/frontdesk-api/internal/handler/health"
	"github.com/jwalitptl/frontdesk-api/internal/middleware"
	"github.com/jwalitptl/frontdesk-api/internal/repository/document"
	"github.com/jwalitptl/frontdesk-api/pkg/logger"
	"github.com/jwalitptl/frontdesk-api/pkg/messaging/redis"
	"github.com/jwalitptl/frontdesk-api/pkg/metrics"
	"github.com/jwalitptl/frontdesk-api/pkg/worker"
)

func setupHealthCheck(port int, checks map[string]health.Check, registry *prometheus.Registry, logger *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery())
	health.NewHandler(checks, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))).
		RegisterRoutes(engine.Group(""))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	appLogger := bootstrap.Logger(cfg.Log)
	workerLogger := appLogger.WithFields(map[string]interface{}{"component": "outbox_worker"})

	if cfg.Redis.URL == "" {
		log.Fatal().Msg("the outbox worker needs redis.url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics("frontdesk", "outbox_processor", registry)

	backend, err := bootstrap.OpenBackend(ctx, cfg, appMetrics, appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer backend.Close()

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Redis broker")
	}
	defer broker.Close()

	outboxRepo := document.NewOutboxRepository(backend.Store)
	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		cfg.Outbox.ToWorkerConfig(),
		workerLogger,
		appMetrics,
	)
	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, workerLogger)

	healthSrv := setupHealthCheck(cfg.Outbox.HealthPort, backend.Checks, registry, appLogger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	<-ctx.Done()
	appLogger.Info("shutting down...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "health server forced to shutdown")
	}
}
