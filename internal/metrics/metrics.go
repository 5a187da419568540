// Package metrics exposes Prometheus instrumentation for the ingestion loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements weather.Recorder on top of Prometheus collectors.
type Metrics struct {
	cacheHits   prometheus.Counter
	apiCalls    *prometheus.CounterVec
	storeWrites *prometheus.CounterVec
	rateLimited prometheus.Counter
	callsToday  prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather",
			Name:      "cache_hits_total",
			Help:      "Dates skipped because an observation was already stored.",
		}),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather",
			Name:      "api_calls_total",
			Help:      "Current-weather API calls by outcome.",
		}, []string{"outcome"}),
		storeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather",
			Name:      "store_writes_total",
			Help:      "Observation upserts by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather",
			Name:      "rate_limited_total",
			Help:      "Backfill runs stopped by the daily API cap.",
		}),
		callsToday: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather",
			Name:      "api_calls_today",
			Help:      "API calls counted against today's budget.",
		}),
	}

	for _, c := range []prometheus.Collector{m.cacheHits, m.apiCalls, m.storeWrites, m.rateLimited, m.callsToday} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) CacheHit() { m.cacheHits.Inc() }

func (m *Metrics) APICall(ok bool) { m.apiCalls.WithLabelValues(outcome(ok)).Inc() }

func (m *Metrics) StoreWrite(ok bool) { m.storeWrites.WithLabelValues(outcome(ok)).Inc() }

func (m *Metrics) RateLimited() { m.rateLimited.Inc() }

func (m *Metrics) CallsToday(n int) { m.callsToday.Set(float64(n)) }

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
