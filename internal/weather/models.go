package weather

import (
	"time"
)

// DateLayout is the calendar-date format used for storage keys and the HTTP API.
const DateLayout = "2006-01-02"

// Observation is a single daily weather record for a city.
// (Date, City) identifies the record; a later write for the same key replaces
// Temperature and Condition.
type Observation struct {
	Date        time.Time `json:"date"` // local calendar date, midnight
	City        string    `json:"city"`
	Temperature float64   `json:"temperatureC"`
	Condition   string    `json:"condition"`
}

// Key returns a canonical string key for indexing this observation in stores.
func (o Observation) Key() string {
	return ObservationKey(o.Date, o.City)
}

// ObservationKey builds the (date, city) key used by stores.
func ObservationKey(date time.Time, city string) string {
	return date.Format(DateLayout) + ":" + city
}

// Day truncates t to midnight of its local calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Summary describes the outcome of one backfill run.
type Summary struct {
	RunID        string    `json:"runId"`
	City         string    `json:"city"`
	Days         int       `json:"days"`
	Successes    int       `json:"successes"`
	Cached       int       `json:"cached"`
	Errors       int       `json:"errors"`
	CallsToday   int       `json:"callsToday"`
	DailyCap     int       `json:"dailyCap"`
	StoppedEarly bool      `json:"stoppedEarly"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}
