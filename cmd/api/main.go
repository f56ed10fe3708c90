package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/frontdesk-api/internal/bootstrap"
	"github.com/jwalitptl/frontdesk-api/internal/config"
	"github.com/jwalitptl/frontdesk-api/internal/email"
	appointmentHandler "github.com/jwalitptl/frontdesk-api/internal/handler/appointment"
	billHandler "github.com/jwalitptl/frontdesk-api/internal/handler/bill"
	certificateHandler "github.com/jwalitptl/frontdesk-api/internal/handler/certificate"
	dischargeHandler "github.com/jwalitptl/frontdesk-api/internal/handler/discharge"
	"github.com/jwalitptl/frontdesk-api/internal/handler/health"
	promhandler "github.com/jwalitptl/frontdesk-api/internal/handler/prometheus"
	userHandler "github.com/jwalitptl/frontdesk-api/internal/handler/user"
	"github.com/jwalitptl/frontdesk-api/internal/identity"
	"github.com/jwalitptl/frontdesk-api/internal/lock"
	"github.com/jwalitptl/frontdesk-api/internal/middleware"
	"github.com/jwalitptl/frontdesk-api/internal/render/pdf"
	"github.com/jwalitptl/frontdesk-api/internal/repository/document"
	"github.com/jwalitptl/frontdesk-api/internal/router"
	appointmentService "github.com/jwalitptl/frontdesk-api/internal/service/appointment"
	billService "github.com/jwalitptl/frontdesk-api/internal/service/bill"
	"github.com/jwalitptl/frontdesk-api/internal/service/booking"
	"github.com/jwalitptl/frontdesk-api/internal/service/calendar"
	certificateService "github.com/jwalitptl/frontdesk-api/internal/service/certificate"
	dischargeService "github.com/jwalitptl/frontdesk-api/internal/service/discharge"
	documentService "github.com/jwalitptl/frontdesk-api/internal/service/document"
	eventService "github.com/jwalitptl/frontdesk-api/internal/service/event"
	userService "github.com/jwalitptl/frontdesk-api/internal/service/user"
	"github.com/jwalitptl/frontdesk-api/pkg/auth"
	"github.com/jwalitptl/frontdesk-api/pkg/metrics"
)

func main() {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	appLogger := bootstrap.Logger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics("frontdesk", "", registry)
	httpMetrics := promhandler.New(registry)

	backend, err := bootstrap.OpenBackend(ctx, cfg, appMetrics, appLogger)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to open store")
	}
	defer backend.Close()

	policy, err := calendar.NewPolicy(cfg.Calendar)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid calendar configuration")
	}

	// Initialize repositories
	appointmentRepo := document.NewAppointmentRepository(backend.Store)
	userRepo := document.NewUserRepository(backend.Store)
	billRepo := document.NewBillRepository(backend.Store)
	certificateRepo := document.NewCertificateRepository(backend.Store)
	outboxRepo := document.NewOutboxRepository(backend.Store)

	events := eventService.NewEventService(outboxRepo)

	bookingOpts := []booking.Option{
		booking.WithEvents(events),
		booking.WithMetrics(appMetrics),
		booking.WithLogger(appLogger),
	}
	appointmentOpts := []appointmentService.Option{
		appointmentService.WithEvents(events),
		appointmentService.WithMetrics(appMetrics),
		appointmentService.WithLogger(appLogger),
	}

	redisClient, err := bootstrap.Redis(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
		backend.Checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if cfg.Booking.Strict {
		slotLock := lock.NewRedis(redisClient, "frontdesk:slot:")
		bookingOpts = append(bookingOpts, booking.WithSlotLock(slotLock))
		appointmentOpts = append(appointmentOpts, appointmentService.WithSlotLock(slotLock))
		appLogger.Info("strict booking enabled")
	}

	var mailer email.Service
	if cfg.Email.Host != "" {
		mailer = email.NewSMTPService(cfg.Email)
	} else {
		appLogger.Warn("no SMTP host configured, emails are disabled")
	}
	renderer := pdf.NewRenderer(cfg.Email.Clinic)

	dischargeOpts := []dischargeService.Option{
		dischargeService.WithEvents(events),
		dischargeService.WithMetrics(appMetrics),
		dischargeService.WithLogger(appLogger),
		dischargeService.WithWriteTimeout(cfg.Booking.WriteTimeout),
	}
	if mailer != nil {
		dischargeOpts = append(dischargeOpts, dischargeService.WithNotifier(documentService.NewInvoiceMailer(renderer, mailer)))
	}

	// Initialize services
	bookingSvc := booking.NewService(appointmentRepo, backend.Files, policy, cfg.Booking.Config, bookingOpts...)
	appointmentSvc := appointmentService.NewService(appointmentRepo, appointmentOpts...)
	dischargeSvc := dischargeService.NewService(appointmentRepo, userRepo, billRepo, dischargeOpts...)
	userSvc := userService.NewService(userRepo, appointmentRepo, mailer, events, appLogger)
	billSvc := billService.NewService(billRepo)
	certificateSvc := certificateService.NewService(certificateRepo, userRepo, events, appLogger)
	documentSvc := documentService.NewService(billRepo, certificateRepo, renderer)

	tokens, err := auth.NewJWTService(auth.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiry,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure tokens")
	}
	identityMiddleware := identity.NewMiddleware(tokens, userRepo, identity.Config{CacheTTL: cfg.JWT.CacheTTL})

	r := router.NewRouter(
		identityMiddleware.Authenticate(),
		health.NewHandler(backend.Checks, httpMetrics.Handler()),
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig:       corsConfig(cfg.CORS),
			RequestTimeout:   cfg.Server.RequestTimeout,
			SizeLimit: middleware.SizeLimitConfig{
				MaxBodySize:   cfg.Server.MaxBodyBytes,
				MaxUploadSize: cfg.Server.MaxUploadBytes,
				ErrorMessage:  "Request size exceeds limit",
			},
			Metrics: httpMetrics.Middleware(),
		},
		appointmentHandler.NewHandler(bookingSvc, appointmentSvc),
		dischargeHandler.NewHandler(dischargeSvc, appointmentSvc),
		userHandler.NewHandler(userSvc, identityMiddleware),
		billHandler.NewHandler(billSvc, documentSvc),
		certificateHandler.NewHandler(certificateSvc, documentSvc),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("store", cfg.Store.Backend).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server exited")
}

func corsConfig(cfg config.CORSConfig) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	if len(cfg.AllowedOrigins) > 0 {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	return c
}
