// Package config loads server settings from the environment (and an
// optional .env file) using envconfig struct tags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port   int    `envconfig:"PORT" default:"8080"`
	DBPath string `envconfig:"DB_PATH" default:"salon.db"`

	JWTSecret    string `envconfig:"JWT_SECRET"`
	AuthDisabled bool   `envconfig:"AUTH_DISABLED" default:"false"`

	Timezone               string          `envconfig:"SALON_TIMEZONE" default:"UTC"`
	DefaultServiceMinutes  int             `envconfig:"DEFAULT_SERVICE_MINUTES" default:"30"`
	RescheduleShiftMinutes int             `envconfig:"RESCHEDULE_SHIFT_MINUTES" default:"15"`
	LatePenalty            decimal.Decimal `envconfig:"LATE_PENALTY" default:"100"`

	PayrollAutoRun       bool          `envconfig:"PAYROLL_AUTO_RUN" default:"false"`
	PayrollCheckInterval time.Duration `envconfig:"PAYROLL_CHECK_INTERVAL" default:"1h"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"salon.booking-events"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads envFiles (".env" when none are given, ignored if missing),
// then the process environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, "DB_PATH must not be empty")
	}
	if !c.AuthDisabled && c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("SALON_TIMEZONE %q is not a known zone", c.Timezone))
	}
	if c.DefaultServiceMinutes <= 0 {
		errs = append(errs, "DEFAULT_SERVICE_MINUTES must be positive")
	}
	if c.RescheduleShiftMinutes <= 0 {
		errs = append(errs, "RESCHEDULE_SHIFT_MINUTES must be positive")
	}
	if c.LatePenalty.IsNegative() {
		errs = append(errs, "LATE_PENALTY must not be negative")
	}
	if c.PayrollAutoRun && c.PayrollCheckInterval <= 0 {
		errs = append(errs, "PAYROLL_CHECK_INTERVAL must be positive when PAYROLL_AUTO_RUN is set")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, "KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return errors.New("invalid configuration: " + strings.Join(errs, "; "))
	}
	return nil
}

// Location is the salon's wall-clock zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
