// Package ratelimit enforces a client-side daily budget of upstream API calls.
package ratelimit

import (
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
)

// DefaultDailyCap is the OpenWeatherMap free-tier budget we stay under.
const DefaultDailyCap = 100

// DailyLimiter counts calls made on the current local calendar day.
// The counter resets lazily on the first use after midnight.
type DailyLimiter struct {
	mu         sync.Mutex
	clock      clock.Clock
	cap        int
	callsToday int
	lastReset  time.Time
}

// NewDailyLimiter creates a limiter allowing up to dailyCap calls per day.
// A non-positive cap falls back to DefaultDailyCap.
func NewDailyLimiter(clk clock.Clock, dailyCap int) *DailyLimiter {
	if clk == nil {
		clk = clock.NewClock()
	}
	if dailyCap <= 0 {
		dailyCap = DefaultDailyCap
	}
	return &DailyLimiter{
		clock:     clk,
		cap:       dailyCap,
		lastReset: day(clk.Now()),
	}
}

// Allow reports whether another call may be made today. It does not consume budget;
// callers report each attempted call with Record.
func (l *DailyLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	return l.callsToday < l.cap
}

// Record counts one attempted call against today's budget.
func (l *DailyLimiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	l.callsToday++
}

// CallsToday returns the number of calls recorded today.
func (l *DailyLimiter) CallsToday() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	return l.callsToday
}

// Cap returns the daily budget.
func (l *DailyLimiter) Cap() int {
	return l.cap
}

// Remaining returns how many calls are left today.
func (l *DailyLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	if l.callsToday >= l.cap {
		return 0
	}
	return l.cap - l.callsToday
}

// rollover must be called with mu held.
func (l *DailyLimiter) rollover() {
	today := day(l.clock.Now())
	if today.After(l.lastReset) {
		l.callsToday = 0
		l.lastReset = today
	}
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
