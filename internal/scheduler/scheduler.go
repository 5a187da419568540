package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weather-ingestion/internal/weather"
)

// Runner is the part of weather.Backfiller the scheduler drives.
type Runner interface {
	Run(ctx context.Context, city string, days int) weather.Summary
}

// Scheduler periodically backfills the configured city.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	city      string
	days      int
	interval  time.Duration
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler.
func New(runner Runner, city string, days int, interval time.Duration, logger *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.Local)
	// Never overlap runs: the backfill is strictly sequential.
	s.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		city:      city,
		days:      days,
		interval:  interval,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic job, starting with an immediate run.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	_, err := s.scheduler.Every(interval).StartImmediately().Do(func() {
		s.logger.Info("scheduler: running backfill job", zap.String("city", s.city))
		s.runner.Run(s.ctx, s.city, s.days)
		s.logger.Info("scheduler: completed backfill job", zap.String("city", s.city))
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop cancels a running backfill and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
