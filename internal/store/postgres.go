package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	_ "github.com/lib/pq"

	"github.com/i474232898/weather-ingestion/internal/weather"
)

const (
	createTableStatement = `
CREATE TABLE IF NOT EXISTS weather_data (
    id SERIAL PRIMARY KEY,
    date DATE NOT NULL,
    city VARCHAR(100) NOT NULL,
    temp NUMERIC(5,2) NOT NULL,
    condition VARCHAR(255) NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (date, city)
)`

	countStatement = `SELECT COUNT(*) FROM weather_data WHERE date = $1 AND city = $2`

	upsertStatement = `
INSERT INTO weather_data (date, temp, condition, city)
VALUES ($1, $2, $3, $4)
ON CONFLICT (date, city) DO UPDATE
SET temp = EXCLUDED.temp,
    condition = EXCLUDED.condition,
    created_at = CURRENT_TIMESTAMP`

	listStatement = `
SELECT date, city, temp, condition FROM weather_data
WHERE city = $1 AND date BETWEEN $2 AND $3
ORDER BY date DESC`
)

// Postgres stores observations in the weather_data table.
// Every call borrows a connection from the pool for its own duration only.
type Postgres struct {
	db *sql.DB
}

// DSNConfig holds discrete connection settings used when no DSN is given.
type DSNConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

// BuildDSN constructs a postgres:// URL from discrete settings.
func BuildDSN(cfg DSNConfig) (string, error) {
	if cfg.Host == "" {
		return "", errors.New("database host is required when DSN is not provided")
	}
	if cfg.User == "" {
		return "", errors.New("database user is required when DSN is not provided")
	}
	if cfg.Name == "" {
		return "", errors.New("database name is required when DSN is not provided")
	}

	port := cfg.Port
	if port == "" {
		port = "5432"
	}

	connectionURL := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, port),
		Path:   "/" + cfg.Name,
		User:   url.UserPassword(cfg.User, cfg.Password),
	}

	query := connectionURL.Query()
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "disable")
	}
	connectionURL.RawQuery = query.Encode()

	return connectionURL.String(), nil
}

// OpenPostgres builds a pooled handle without connecting. Connection failures
// surface on the first call that needs the database.
func OpenPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return NewPostgres(db), nil
}

// NewPostgres wraps an existing handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Ping verifies connectivity, giving up after five seconds.
func (p *Postgres) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// EnsureSchema creates the weather_data table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createTableStatement); err != nil {
		return fmt.Errorf("postgres store: ensure schema: %w", err)
	}
	return nil
}

// Count returns the number of rows stored for (date, city).
func (p *Postgres) Count(ctx context.Context, date time.Time, city string) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, countStatement, date.Format(weather.DateLayout), city).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres store: count: %w", err)
	}
	return n, nil
}

// Upsert inserts obs or overwrites temperature and condition of the existing
// (date, city) row, in a single transaction.
func (p *Postgres) Upsert(ctx context.Context, obs weather.Observation) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, upsertStatement,
		obs.Date.Format(weather.DateLayout), obs.Temperature, obs.Condition, obs.City); err != nil {
		return fmt.Errorf("postgres store: upsert: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("postgres store: commit: %w", err)
	}
	return nil
}

// List returns observations for city between from and to (inclusive), newest first.
func (p *Postgres) List(ctx context.Context, city string, from, to time.Time) ([]weather.Observation, error) {
	rows, err := p.db.QueryContext(ctx, listStatement, city, from.Format(weather.DateLayout), to.Format(weather.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	defer rows.Close()

	var out []weather.Observation
	for rows.Next() {
		var (
			obs  weather.Observation
			date time.Time
		)
		if err := rows.Scan(&date, &obs.City, &obs.Temperature, &obs.Condition); err != nil {
			return nil, fmt.Errorf("postgres store: scan: %w", err)
		}
		obs.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.Local)
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: list rows: %w", err)
	}

	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

var _ weather.Repository = (*Postgres)(nil)
