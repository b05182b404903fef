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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/spa-desk/internal/api/router"
	"github.com/wolfman30/spa-desk/internal/app/bootstrap"
	"github.com/wolfman30/spa-desk/internal/appointments"
	"github.com/wolfman30/spa-desk/internal/assistant"
	"github.com/wolfman30/spa-desk/internal/audit"
	appconfig "github.com/wolfman30/spa-desk/internal/config"
	"github.com/wolfman30/spa-desk/internal/digest"
	"github.com/wolfman30/spa-desk/internal/expenses"
	httpmiddleware "github.com/wolfman30/spa-desk/internal/http/middleware"
	"github.com/wolfman30/spa-desk/internal/observability/metrics"
	"github.com/wolfman30/spa-desk/internal/schedule"
	"github.com/wolfman30/spa-desk/internal/webchat"
	"github.com/wolfman30/spa-desk/pkg/logging"
)

func main() {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting spa-desk API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.Location().String(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.digest != nil {
		app.digest.Start()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if app.digest != nil {
		app.digest.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// app is everything main starts and later tears down.
type app struct {
	handler http.Handler
	digest  *digest.Scheduler
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics, *metrics.ChatMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewBookingMetrics(reg), metrics.NewChatMetrics(reg)
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	a := &app{}
	metricsHandler, bookingMetrics, chatMetrics := setupMetrics()
	checks := map[string]router.HealthChecker{}

	engine := schedule.NewEngine(
		schedule.WithLocation(cfg.Location()),
		schedule.WithHorizonDays(cfg.BookingHorizonDays),
	)

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}

	var (
		apptRepo    appointments.Repository
		expenseRepo expenses.Repository
		auditor     appointments.Auditor
	)
	if pool != nil {
		a.closers = append(a.closers, pool.Close)
		checks["postgres"] = func(r *http.Request) error { return pool.Ping(r.Context()) }
		apptRepo = appointments.NewPostgresRepository(pool)
		expenseRepo = expenses.NewPostgresRepository(pool)

		auditDB, err := bootstrap.BuildAuditDB(cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = auditDB.Close() })
		auditor = audit.NewService(auditDB)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		apptRepo = appointments.NewInMemoryRepository()
		expenseRepo = expenses.NewInMemoryRepository()
	}

	apptService := appointments.NewService(apptRepo, engine, auditor, bookingMetrics, logger)
	expenseService := expenses.NewService(expenseRepo, logger)

	routerCfg := &router.Config{
		Logger:             logger,
		Appointments:       appointments.NewHandler(apptService, logger),
		Expenses:           expenses.NewHandler(expenseService, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Checks:             checks,
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin and chat routes disabled")
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		checks["redis"] = func(r *http.Request) error { return redisClient.Ping(r.Context()).Err() }

		chat := assistant.New(apptService, bootstrap.BuildSessionStore(redisClient, cfg),
			assistant.WithTranscripts(bootstrap.BuildTranscriptStore(redisClient, cfg)),
			assistant.WithMetrics(chatMetrics),
			assistant.WithLogger(logger),
			assistant.WithClock(time.Now, cfg.Location()),
		)
		limiter := httpmiddleware.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateBurst)
		a.closers = append(a.closers, limiter.Stop)

		routerCfg.WebChat = webchat.NewHandler(chat, logger)
		routerCfg.ChatLimiter = limiter
	} else {
		logger.Warn("redis not available; chat assistant disabled")
	}

	scheduler, err := bootstrap.BuildDigestScheduler(ctx, cfg, apptService, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.digest = scheduler

	a.handler = router.New(routerCfg)
	return a, nil
}
