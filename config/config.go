// config/config.go - Environment-driven configuration
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultTeamName is the reserved name the default party is looked up by.
	DefaultTeamName = "Default Team"
)

// Config holds everything the service and CLI read from the environment.
type Config struct {
	AppEnv      string
	Port        string
	CORSOrigins string

	DBDriver    string
	DatabaseURL string
	DBPath      string

	LogLevel  slog.Level
	LogFormat string

	MaxPartySize      int
	MaxTeams          int
	DefaultTeamName   string
	SeedDefaultHeroes bool

	RateLimitRPS   float64
	RateLimitBurst int

	// CleanupInterval is how often orphaned roster slots are swept.
	// Zero disables the sweeper.
	CleanupInterval time.Duration
}

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnvOrDefault("APP_ENV", "development"),
		Port:              getEnvOrDefault("PORT", "3000"),
		CORSOrigins:       getEnvOrDefault("CORS_ORIGINS", "http://localhost:3000"),
		DBDriver:          strings.ToLower(getEnvOrDefault("DB_DRIVER", DriverSQLite)),
		DBPath:            getEnvOrDefault("DB_PATH", "superparty.db"),
		LogFormat:         strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text")),
		DefaultTeamName:   getEnvOrDefault("DEFAULT_TEAM_NAME", DefaultTeamName),
		MaxPartySize:      6,
		MaxTeams:          10,
		SeedDefaultHeroes: true,
		RateLimitRPS:      20,
		RateLimitBurst:    40,
		CleanupInterval:   10 * time.Minute,
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getEnvOrDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.MaxPartySize, err = getEnvInt("MAX_PARTY_SIZE", cfg.MaxPartySize); err != nil {
		return nil, err
	}
	if cfg.MaxTeams, err = getEnvInt("MAX_TEAMS", cfg.MaxTeams); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return nil, err
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if cfg.RateLimitRPS, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
	}
	if v := os.Getenv("CLEANUP_INTERVAL"); v != "" {
		if cfg.CleanupInterval, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("CLEANUP_INTERVAL: %w", err)
		}
	}
	if v := os.Getenv("SEED_DEFAULT_HEROES"); v != "" {
		if cfg.SeedDefaultHeroes, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("SEED_DEFAULT_HEROES: %w", err)
		}
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DBDriver == DriverPostgres && cfg.DatabaseURL == "" {
		// Fallback to individual parameters
		cfg.DatabaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnvOrDefault("DB_HOST", "localhost"),
			getEnvOrDefault("DB_PORT", "5432"),
			getEnvOrDefault("DB_USER", "postgres"),
			getEnvOrDefault("DB_PASSWORD", ""),
			getEnvOrDefault("DB_NAME", "superparty"),
			getEnvOrDefault("DB_SSLMODE", "disable"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the store cannot operate with.
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH must be set for the sqlite driver"))
		}
	case DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}
	if c.MaxPartySize < 1 {
		errs = append(errs, fmt.Errorf("MAX_PARTY_SIZE must be positive, got %d", c.MaxPartySize))
	}
	if c.MaxTeams < 0 {
		errs = append(errs, fmt.Errorf("MAX_TEAMS must not be negative, got %d", c.MaxTeams))
	}
	if c.CleanupInterval < 0 {
		errs = append(errs, fmt.Errorf("CLEANUP_INTERVAL must not be negative, got %s", c.CleanupInterval))
	}
	if strings.TrimSpace(c.DefaultTeamName) == "" {
		errs = append(errs, errors.New("DEFAULT_TEAM_NAME must not be blank"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
