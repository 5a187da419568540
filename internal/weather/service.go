package weather

import (
	"context"
	"errors"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCallDelay is the pause after every upstream call.
const DefaultCallDelay = 1 * time.Second

// CacheChecker reports whether an observation is already stored.
type CacheChecker struct {
	repo   Repository
	logger *zap.Logger
}

func NewCacheChecker(repo Repository, logger *zap.Logger) *CacheChecker {
	return &CacheChecker{repo: repo, logger: logger}
}

// Exists reports whether (date, city) is stored. A storage failure is logged and
// reported as not cached, so the date gets fetched again rather than skipped.
func (c *CacheChecker) Exists(ctx context.Context, date time.Time, city string) bool {
	n, err := c.repo.Count(ctx, date, city)
	if err != nil {
		c.logger.Error("cache check failed; treating as not cached",
			zap.String("city", city), zap.String("date", date.Format(DateLayout)), zap.Error(err))
		return false
	}
	return n > 0
}

// ObservationStore persists observations with insert-or-update semantics.
type ObservationStore struct {
	repo   Repository
	logger *zap.Logger
}

func NewObservationStore(repo Repository, logger *zap.Logger) *ObservationStore {
	return &ObservationStore{repo: repo, logger: logger}
}

// Upsert writes obs and reports whether the write was committed.
func (s *ObservationStore) Upsert(ctx context.Context, obs Observation) bool {
	if err := s.repo.Upsert(ctx, obs); err != nil {
		s.logger.Error("failed to save observation",
			zap.String("city", obs.City), zap.String("date", obs.Date.Format(DateLayout)), zap.Error(err))
		return false
	}
	s.logger.Info("observation saved",
		zap.String("city", obs.City), zap.String("date", obs.Date.Format(DateLayout)))
	return true
}

// Backfiller fills a range of past days for a city, one API call per missing day.
type Backfiller struct {
	cache    *CacheChecker
	store    *ObservationStore
	client   Client
	quota    Quota
	recorder Recorder
	clock    clock.Clock
	delay    time.Duration
	logger   *zap.Logger

	mu   sync.RWMutex
	last *Summary
}

type BackfillerOption func(*Backfiller)

// WithCallDelay overrides DefaultCallDelay. Zero disables the pause.
func WithCallDelay(d time.Duration) BackfillerOption {
	return func(b *Backfiller) {
		if d >= 0 {
			b.delay = d
		}
	}
}

func WithClock(clk clock.Clock) BackfillerOption {
	return func(b *Backfiller) {
		if clk != nil {
			b.clock = clk
		}
	}
}

func WithRecorder(r Recorder) BackfillerOption {
	return func(b *Backfiller) {
		if r != nil {
			b.recorder = r
		}
	}
}

func NewBackfiller(repo Repository, client Client, quota Quota, logger *zap.Logger, opts ...BackfillerOption) *Backfiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backfiller{
		cache:    NewCacheChecker(repo, logger),
		store:    NewObservationStore(repo, logger),
		client:   client,
		quota:    quota,
		recorder: nopRecorder{},
		clock:    clock.NewClock(),
		delay:    DefaultCallDelay,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run walks the last days days (today first) for city and stores one observation per
// day that is not already stored.
//
// The upstream API only serves current conditions, so every stored row carries
// today's reading relabelled with the target date. This simulates history; it is not
// historical data.
//
// The loop stops early when the daily API budget is spent or ctx is cancelled.
// Failed dates are not retried within the run.
func (b *Backfiller) Run(ctx context.Context, city string, days int) Summary {
	sum := Summary{
		RunID:     uuid.NewString(),
		City:      city,
		Days:      days,
		DailyCap:  b.quota.Cap(),
		StartedAt: b.clock.Now(),
	}
	log := b.logger.With(zap.String("run_id", sum.RunID), zap.String("city", city))
	log.Info("starting backfill", zap.Int("days", days))

	today := Day(b.clock.Now())

	for i := 0; i < days; i++ {
		if ctx.Err() != nil {
			log.Warn("backfill cancelled", zap.Error(ctx.Err()))
			sum.StoppedEarly = true
			break
		}

		target := today.AddDate(0, 0, -i)
		dateField := zap.String("date", target.Format(DateLayout))

		if b.cache.Exists(ctx, target, city) {
			log.Info("observation already stored", dateField)
			sum.Cached++
			b.recorder.CacheHit()
			continue
		}

		if !b.quota.Allow() {
			log.Warn("daily API call limit reached; stopping backfill",
				dateField, zap.Int("calls_today", b.quota.CallsToday()), zap.Int("daily_cap", b.quota.Cap()))
			sum.StoppedEarly = true
			b.recorder.RateLimited()
			break
		}

		obs, err := b.client.FetchCurrent(ctx, city)
		if !errors.Is(err, ErrNotAttempted) {
			b.quota.Record()
		}
		b.recorder.CallsToday(b.quota.CallsToday())

		if err != nil {
			log.Error("failed to fetch current weather", dateField, zap.Error(err))
			sum.Errors++
			b.recorder.APICall(false)
		} else {
			log.Info("fetched current weather", dateField,
				zap.Int("call", b.quota.CallsToday()), zap.Float64("temperature", obs.Temperature))
			b.recorder.APICall(true)

			obs.Date = target
			if b.store.Upsert(ctx, obs) {
				sum.Successes++
				b.recorder.StoreWrite(true)
			} else {
				sum.Errors++
				b.recorder.StoreWrite(false)
			}
		}

		if !b.pause(ctx) {
			log.Warn("backfill cancelled", zap.Error(ctx.Err()))
			sum.StoppedEarly = true
			break
		}
	}

	sum.CallsToday = b.quota.CallsToday()
	sum.FinishedAt = b.clock.Now()

	log.Info("backfill summary",
		zap.Int("successes", sum.Successes),
		zap.Int("cached", sum.Cached),
		zap.Int("errors", sum.Errors),
		zap.Int("calls_today", sum.CallsToday),
		zap.Int("daily_cap", sum.DailyCap),
		zap.Bool("stopped_early", sum.StoppedEarly),
	)

	b.mu.Lock()
	b.last = &sum
	b.mu.Unlock()

	return sum
}

// LastSummary returns the summary of the most recent run, if any.
func (b *Backfiller) LastSummary() (Summary, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.last == nil {
		return Summary{}, false
	}
	return *b.last, true
}

// pause blocks for the call delay. It returns false if ctx ended first.
func (b *Backfiller) pause(ctx context.Context) bool {
	if b.delay <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-b.clock.After(b.delay):
		return true
	}
}

type nopRecorder struct{}

func (nopRecorder) CacheHit()       {}
func (nopRecorder) APICall(bool)    {}
func (nopRecorder) StoreWrite(bool) {}
func (nopRecorder) RateLimited()    {}
func (nopRecorder) CallsToday(int)  {}
