package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-ingestion/internal/weather"
)

var (
	// ErrNotFound is returned when no observations match a query.
	ErrNotFound = errors.New("no weather data for city")
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Repository.
// Used for dry runs without a database and in tests.
type MemoryStore struct {
	mu sync.RWMutex

	// key: (date, city) key
	data map[string]weather.Observation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]weather.Observation),
	}
}

func (s *MemoryStore) Count(_ context.Context, date time.Time, city string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data[weather.ObservationKey(date, city)]; ok {
		return 1, nil
	}
	return 0, nil
}

// Upsert stores obs, replacing any observation with the same (date, city).
func (s *MemoryStore) Upsert(_ context.Context, obs weather.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obs.Date = weather.Day(obs.Date)
	s.data[obs.Key()] = obs
	return nil
}

// List returns all observations for city between from and to (inclusive), newest first.
func (s *MemoryStore) List(_ context.Context, city string, from, to time.Time) ([]weather.Observation, error) {
	from, to = weather.Day(from), weather.Day(to)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.Observation
	for _, obs := range s.data {
		if obs.City != city {
			continue
		}
		if obs.Date.Before(from) || obs.Date.After(to) {
			continue
		}
		result = append(result, obs)
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

// Len returns the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ weather.Repository = (*MemoryStore)(nil)
