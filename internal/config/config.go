package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate.
const (
	DefaultInstance          = "default"
	DefaultRedisURL          = "redis://localhost:6379/0"
	DefaultHTTPAddr          = ":8080"
	DefaultTimezone          = "Asia/Kolkata"
	DefaultCurrency          = "INR"
	DefaultReservationTTL    = 5 * time.Second
	DefaultSweepInterval     = time.Minute
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultTokenTTL          = 24 * time.Hour
	DefaultMaxDurationMonths = 24
)

// Environment variables that override nest.yml.
const (
	EnvRedisURL         = "REDIS_URL"
	EnvInstanceName     = "NEST_INSTANCE_NAME"
	EnvJWTSecret        = "NEST_JWT_SECRET"
	EnvPaymentKeySecret = "NEST_PAYMENT_KEY_SECRET"
	EnvHTTPAddr         = "NEST_HTTP_ADDR"
)

var instanceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// NestConfig represents the top-level nest.yml configuration
type NestConfig struct {
	Version  string         `yaml:"version"`
	Instance string         `yaml:"instance"`
	Redis    RedisConfig    `yaml:"redis"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Payments PaymentsConfig `yaml:"payments"`
	Market   MarketConfig   `yaml:"market"`

	location        *time.Location
	reservationTTL  time.Duration
	sweepInterval   time.Duration
	shutdownTimeout time.Duration
	tokenTTL        time.Duration
}

// RedisConfig locates the marketplace store
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`
}

// AuthConfig holds the bearer token settings
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  string `yaml:"token_ttl,omitempty"` // lifetime of tokens minted by nestctl
}

// PaymentsConfig holds the payment authority credentials
type PaymentsConfig struct {
	KeySecret string `yaml:"key_secret"`
	Currency  string `yaml:"currency,omitempty"`
}

// MarketConfig tunes the coordination engines
type MarketConfig struct {
	Timezone       string         `yaml:"timezone,omitempty"`        // calendar dates and visit slots are local to this zone
	ReservationTTL string         `yaml:"reservation_ttl,omitempty"` // slot reservation expiry
	SweepInterval  string         `yaml:"sweep_interval,omitempty"`
	Booking        *BookingConfig `yaml:"booking,omitempty"`
}

// BookingConfig bounds new bookings
type BookingConfig struct {
	MaxDurationMonths *int `yaml:"max_duration_months,omitempty"`
}

// Validate applies defaults and checks the configuration
func (c *NestConfig) Validate() error {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		c.Instance = DefaultInstance
	}
	if !instanceNamePattern.MatchString(c.Instance) {
		return fmt.Errorf("invalid instance name %q: use lowercase letters, digits and dashes", c.Instance)
	}
	if c.Redis.URL == "" {
		c.Redis.URL = DefaultRedisURL
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultHTTPAddr
	}
	if c.Payments.Currency == "" {
		c.Payments.Currency = DefaultCurrency
	}
	if c.Market.Timezone == "" {
		c.Market.Timezone = DefaultTimezone
	}

	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	c.location = loc

	durations := []struct {
		name  string
		value string
		def   time.Duration
		dst   *time.Duration
	}{
		{"market.reservation_ttl", c.Market.ReservationTTL, DefaultReservationTTL, &c.reservationTTL},
		{"market.sweep_interval", c.Market.SweepInterval, DefaultSweepInterval, &c.sweepInterval},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout, DefaultShutdownTimeout, &c.shutdownTimeout},
		{"auth.token_ttl", c.Auth.TokenTTL, DefaultTokenTTL, &c.tokenTTL},
	}
	for _, d := range durations {
		if d.value == "" {
			*d.dst = d.def
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q", d.name, d.value)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
		*d.dst = parsed
	}

	if c.Market.Booking == nil {
		c.Market.Booking = &BookingConfig{}
	}
	if c.Market.Booking.MaxDurationMonths == nil {
		months := DefaultMaxDurationMonths
		c.Market.Booking.MaxDurationMonths = &months
	}
	if *c.Market.Booking.MaxDurationMonths < 1 {
		return fmt.Errorf("market.booking.max_duration_months must be >= 1, got %d", *c.Market.Booking.MaxDurationMonths)
	}

	return nil
}

// RequireSecrets checks the secrets the HTTP server cannot run without
func (c *NestConfig) RequireSecrets() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (or set %s)", EnvJWTSecret)
	}
	if c.Payments.KeySecret == "" {
		return fmt.Errorf("payments.key_secret is required (or set %s)", EnvPaymentKeySecret)
	}
	return nil
}

// Location is the market's local timezone. Valid after Validate.
func (c *NestConfig) Location() *time.Location { return c.location }

// ReservationTTL is the slot reservation expiry. Valid after Validate.
func (c *NestConfig) ReservationTTL() time.Duration { return c.reservationTTL }

// SweepInterval is the time between sweeps. Valid after Validate.
func (c *NestConfig) SweepInterval() time.Duration { return c.sweepInterval }

// ShutdownTimeout bounds graceful HTTP shutdown. Valid after Validate.
func (c *NestConfig) ShutdownTimeout() time.Duration { return c.shutdownTimeout }

// TokenTTL is the lifetime of minted tokens. Valid after Validate.
func (c *NestConfig) TokenTTL() time.Duration { return c.tokenTTL }

// MaxDurationMonths bounds booking length. Valid after Validate.
func (c *NestConfig) MaxDurationMonths() int { return *c.Market.Booking.MaxDurationMonths }

// applyEnv overrides file values with any set environment variables
func (c *NestConfig) applyEnv(getenv func(string) string) {
	overrides := []struct {
		key string
		dst *string
	}{
		{EnvRedisURL, &c.Redis.URL},
		{EnvInstanceName, &c.Instance},
		{EnvJWTSecret, &c.Auth.JWTSecret},
		{EnvPaymentKeySecret, &c.Payments.KeySecret},
		{EnvHTTPAddr, &c.Server.Addr},
	}
	for _, o := range overrides {
		if v := getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. With no paths it loads ./.env if present.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// Load reads nest.yml from path, applies environment overrides and validates.
// An empty path yields the defaults plus the environment.
func Load(path string) (*NestConfig, error) {
	var config NestConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	config.applyEnv(os.Getenv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
