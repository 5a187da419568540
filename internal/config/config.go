package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ErrMissingAPIKey is returned by Load when OPENWEATHER_API_KEY is not set.
var ErrMissingAPIKey = errors.New("OPENWEATHER_API_KEY is not configured")

var validate = validator.New()

type AppConfig struct {
	OpenWeatherAPIKey string        `validate:"required"`
	OpenWeatherURL    string        `validate:"required,url"`
	Lang              string        `validate:"required"`
	HTTPTimeout       time.Duration `validate:"gt=0"`

	City         string        `validate:"required"`
	BackfillDays int           `validate:"min=1"`
	DailyCap     int           `validate:"min=1"`
	CallDelay    time.Duration `validate:"gte=0"`

	// ScheduleInterval > 0 keeps the process running and repeats the backfill.
	ScheduleInterval time.Duration `validate:"gte=0"`
	Port             string

	Storage  string `validate:"oneof=postgres memory"`
	Database Database

	LogLevel string
	LogFile  string
}

// Database holds Postgres connection settings. DSN wins over the discrete fields.
type Database struct {
	DSN      string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherURL = getenvDefault("OPENWEATHER_BASE_URL", "http://api.openweathermap.org/data/2.5/weather")
	cfg.Lang = getenvDefault("WEATHER_LANG", "en")
	cfg.City = getenvDefault("CITY", "Casablanca")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.CallDelay, err = getenvDuration("DELAY_BETWEEN_CALLS", "1s"); err != nil {
		return nil, err
	}
	if cfg.ScheduleInterval, err = getenvDuration("SCHEDULE_INTERVAL", "0s"); err != nil {
		return nil, err
	}
	if cfg.BackfillDays, err = getenvInt("BACKFILL_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.DailyCap, err = getenvInt("MAX_CALLS_PER_DAY", 100); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.Storage = getenvDefault("STORAGE", "postgres")
	cfg.Database = Database{
		DSN:      os.Getenv("DB_DSN"),
		Host:     getenvDefault("DB_HOST", "localhost"),
		Port:     getenvDefault("DB_PORT", "5433"),
		Name:     getenvDefault("DB_NAME", "weather_db"),
		User:     getenvDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
	}
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFile = LogFile()

	if cfg.OpenWeatherAPIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LogFile returns the error log path from LOG_FILE, defaulting to weather_errors.log.
// An explicitly empty LOG_FILE disables the file sink.
func LogFile() string {
	if v, set := os.LookupEnv("LOG_FILE"); set {
		return v
	}
	return "weather_errors.log"
}

// Fields renders the configuration for a startup log line with secrets redacted.
func (c *AppConfig) Fields() []zap.Field {
	return []zap.Field{
		zap.String("city", c.City),
		zap.Int("backfill_days", c.BackfillDays),
		zap.Int("max_calls_per_day", c.DailyCap),
		zap.Duration("delay_between_calls", c.CallDelay),
		zap.Duration("http_timeout", c.HTTPTimeout),
		zap.Duration("schedule_interval", c.ScheduleInterval),
		zap.String("storage", c.Storage),
		zap.Bool("db_dsn_set", c.Database.DSN != ""),
		zap.String("db_host", c.Database.Host),
		zap.String("db_port", c.Database.Port),
		zap.String("db_name", c.Database.Name),
		zap.String("db_user", c.Database.User),
		zap.Bool("db_password_set", c.Database.Password != ""),
		zap.Bool("api_key_set", c.OpenWeatherAPIKey != ""),
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
