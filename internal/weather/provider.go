package weather

import (
	"context"
	"errors"
	"time"
)

// ErrNotAttempted is returned by a Client when it refused to send the request
// at all (for example an open circuit breaker). No API quota was consumed.
var ErrNotAttempted = errors.New("weather request not attempted")

// Client abstracts the current-weather data source (OpenWeatherMap).
type Client interface {
	// FetchCurrent returns the current observation for city, stamped with
	// today's local date.
	FetchCurrent(ctx context.Context, city string) (Observation, error)
}

// Repository is the contract the Postgres store (and the in-memory store) must satisfy.
type Repository interface {
	Count(ctx context.Context, date time.Time, city string) (int, error)
	Upsert(ctx context.Context, obs Observation) error
	List(ctx context.Context, city string, from, to time.Time) ([]Observation, error)
}

// Quota tracks the daily API call budget.
type Quota interface {
	Allow() bool
	Record()
	CallsToday() int
	Cap() int
}

// Recorder receives backfill events for metrics.
type Recorder interface {
	CacheHit()
	APICall(ok bool)
	StoreWrite(ok bool)
	RateLimited()
	CallsToday(n int)
}
