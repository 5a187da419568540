package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-ingestion/internal/api/http"
	"github.com/i474232898/weather-ingestion/internal/config"
	"github.com/i474232898/weather-ingestion/internal/logging"
	"github.com/i474232898/weather-ingestion/internal/metrics"
	"github.com/i474232898/weather-ingestion/internal/ratelimit"
	"github.com/i474232898/weather-ingestion/internal/scheduler"
	"github.com/i474232898/weather-ingestion/internal/store"
	"github.com/i474232898/weather-ingestion/internal/weather"
	"github.com/i474232898/weather-ingestion/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if errors.Is(err, config.ErrMissingAPIKey) {
		// Nothing can be fetched without a key; stop before doing any work.
		zl, lerr := logging.New("info", logging.WithFile(config.LogFile()))
		if lerr != nil {
			log.Printf("ERROR: %v; failed to open error log: %v", err, lerr)
			return
		}
		zl.Error("OpenWeatherMap API key is not configured; set OPENWEATHER_API_KEY")
		_ = zl.Sync()
		return
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logging.New(cfg.LogLevel, logging.WithFile(cfg.LogFile))
	if err != nil {
		log.Fatalf("failed to initialise logger: %v", err)
	}
	defer zl.Sync()

	zl.Info("starting weather ingestion", cfg.Fields()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, cleanup, err := setupRepository(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("invalid storage configuration", zap.Error(err))
	}
	defer cleanup()

	clk := clock.NewClock()

	// Shared HTTP client for outbound API calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	client := providers.NewOpenWeatherClient(httpClient, cfg.OpenWeatherAPIKey,
		providers.WithBaseURL(cfg.OpenWeatherURL),
		providers.WithLang(cfg.Lang),
		providers.WithTimeout(cfg.HTTPTimeout),
		providers.WithClock(clk),
	)

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		zl.Fatal("failed to register metrics", zap.Error(err))
	}

	limiter := ratelimit.NewDailyLimiter(clk, cfg.DailyCap)
	backfiller := weather.NewBackfiller(repo, client, limiter, zl,
		weather.WithClock(clk),
		weather.WithCallDelay(cfg.CallDelay),
		weather.WithRecorder(m),
	)

	if cfg.ScheduleInterval <= 0 {
		backfiller.Run(ctx, cfg.City, cfg.BackfillDays)
		zl.Info("weather ingestion finished")
		return
	}

	serve(ctx, cfg, zl, backfiller, httpapi.Deps{
		Repo:     repo,
		Runs:     backfiller,
		Quota:    limiter,
		Gatherer: registry,
	})
}

// serve runs the scheduled backfill and the read-only API until ctx is cancelled.
func serve(ctx context.Context, cfg *config.AppConfig, zl *zap.Logger, runner scheduler.Runner, deps httpapi.Deps) {
	sched := scheduler.New(runner, cfg.City, cfg.BackfillDays, cfg.ScheduleInterval, zl)
	if err := sched.Start(); err != nil {
		zl.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-ingestion",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-ingestion",
		})
	})

	httpapi.RegisterRoutes(app, deps)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("fiber server stopped", zap.Error(err))
		}
	}()
	zl.Info("HTTP server listening", zap.String("port", cfg.Port))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Error("error during shutdown", zap.Error(err))
	}
}

func setupRepository(ctx context.Context, cfg *config.AppConfig, zl *zap.Logger) (weather.Repository, func(), error) {
	if cfg.Storage == "memory" {
		zl.Warn("using in-memory storage; observations will not survive restarts")
		return store.NewMemoryStore(), func() {}, nil
	}

	dsn := cfg.Database.DSN
	if dsn == "" {
		var err error
		dsn, err = store.BuildDSN(store.DSNConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Name:     cfg.Database.Name,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	pg, err := store.OpenPostgres(dsn)
	if err != nil {
		return nil, nil, err
	}
	prepareDatabase(ctx, pg, zl)

	cleanup := func() {
		if err := pg.Close(); err != nil {
			zl.Error("failed to close database", zap.Error(err))
		}
	}
	return pg, cleanup, nil
}

// prepareDatabase checks connectivity and creates the table. Failures are logged
// only: the backfill still runs, cache checks fail open and writes count as errors.
func prepareDatabase(ctx context.Context, pg *store.Postgres, zl *zap.Logger) {
	if err := pg.Ping(ctx); err != nil {
		zl.Error("database unreachable; continuing without a verified connection", zap.Error(err))
		return
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		zl.Error("failed to ensure weather_data schema", zap.Error(err))
	}
}
