// Package config loads settings for the three binaries.
//
// Values come from flags, then the environment, then defaults. A .env file
// in the working directory is loaded into the environment first; variables
// already set win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

const envFile = ".env"

// minSecretLength matches what auth.NewTokenService accepts.
const minSecretLength = 16

// Storage drivers for browser storage.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Client holds the endpoints every client of the backend needs. The web
// server and habitctl embed it.
type Client struct {
	APIURL            string `name:"api-url" env:"API_URL" default:"http://localhost:8000" help:"Habit REST backend base URL."`
	IdentityURL       string `name:"identity-url" env:"IDENTITY_URL" default:"http://localhost:9999" help:"Identity provider base URL."`
	IdentityAPIKey    string `name:"identity-api-key" env:"IDENTITY_API_KEY" help:"Identity provider API key (apikey header)."`
	IdentityJWTSecret string `name:"identity-jwt-secret" env:"IDENTITY_JWT_SECRET" help:"Shared HS256 secret; when set, issued access tokens are verified."`
}

// Log configures the process logger.
type Log struct {
	LogLevel string `name:"log-level" env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Minimum log level."`
	LogFile  string `name:"log-file" env:"LOG_FILE" help:"Also write logs to this rotating file."`
}

// Config is the web client's configuration.
type Config struct {
	Port int `env:"PORT" default:"3000" help:"HTTP listen port."`

	Client `embed:""`

	StorageDriver  string        `name:"storage-driver" env:"STORAGE_DRIVER" default:"sqlite" enum:"sqlite,redis" help:"Browser storage backend."`
	DBPath         string        `name:"db-path" env:"DB_PATH" default:"data/habits.db" help:"SQLite database file."`
	RedisURL       string        `name:"redis-url" env:"REDIS_URL" help:"Redis URL, e.g. redis://localhost:6379/0."`
	StorageTTL     time.Duration `name:"storage-ttl" env:"STORAGE_TTL" default:"720h" help:"How long an untouched browser's storage is kept."`
	SessionIdleTTL time.Duration `name:"session-idle-ttl" env:"SESSION_IDLE_TTL" default:"24h" help:"How long an idle browser session stays in memory."`
	GuardWait      time.Duration `name:"guard-wait" env:"GUARD_WAIT" default:"2s" help:"How long a protected page waits for a loading session."`
	SecureCookies  bool          `name:"secure-cookies" env:"SECURE_COOKIES" help:"Mark the session cookie Secure (HTTPS deployments)."`
	AuthRate       float64       `name:"auth-rate" env:"AUTH_RATE" default:"1" help:"Auth form submissions per second per IP."`
	AuthBurst      int           `name:"auth-burst" env:"AUTH_BURST" default:"5" help:"Auth form burst per IP."`

	Log `embed:""`
}

// DevIDP is the development identity provider's configuration.
type DevIDP struct {
	Port      int           `env:"DEVIDP_PORT" default:"9999" help:"HTTP listen port."`
	DBPath    string        `name:"db-path" env:"DEVIDP_DB_PATH" default:"data/devidp.db" help:"SQLite database file for accounts."`
	JWTSecret string        `name:"jwt-secret" env:"IDENTITY_JWT_SECRET" required:"" help:"HS256 signing secret (at least 16 characters)."`
	APIKey    string        `name:"api-key" env:"IDENTITY_API_KEY" help:"Required apikey header value; empty disables the check."`
	AccessTTL time.Duration `name:"access-ttl" env:"DEVIDP_ACCESS_TTL" default:"1h" help:"Access token lifetime."`

	Log `embed:""`
}

// LoadDotEnv loads .env into the environment. A missing file is fine.
func LoadDotEnv() error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

// Load parses the web client's configuration from args and the environment.
func Load(args []string) (*Config, error) {
	var cfg Config
	if err := parse(&cfg, "habit-server", "Habit tracker web client.", args); err != nil {
		return nil, err
	}
	cfg.APIURL = NormalizeURL(cfg.APIURL)
	cfg.IdentityURL = NormalizeURL(cfg.IdentityURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDevIDP parses the development identity provider's configuration.
func LoadDevIDP(args []string) (*DevIDP, error) {
	var cfg DevIDP
	if err := parse(&cfg, "devidp", "Local GoTrue-compatible identity provider.", args); err != nil {
		return nil, err
	}
	if err := validatePort("port", cfg.Port); err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < minSecretLength {
		return nil, fmt.Errorf("config: jwt-secret must be at least %d characters", minSecretLength)
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("config: access-ttl must be positive, got %s", cfg.AccessTTL)
	}
	return &cfg, nil
}

func parse(target any, name, description string, args []string) error {
	if err := LoadDotEnv(); err != nil {
		return err
	}
	parser, err := kong.New(target, kong.Name(name), kong.Description(description))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := parser.Parse(args); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate checks values kong cannot express as tags.
func (c *Config) Validate() error {
	if err := validatePort("port", c.Port); err != nil {
		return err
	}
	if c.StorageDriver == DriverRedis && c.RedisURL == "" {
		return errors.New("config: redis-url is required when storage-driver is redis")
	}
	if c.IdentityJWTSecret != "" && len(c.IdentityJWTSecret) < minSecretLength {
		return fmt.Errorf("config: identity-jwt-secret must be at least %d characters", minSecretLength)
	}
	if c.GuardWait < 0 {
		return fmt.Errorf("config: guard-wait must not be negative, got %s", c.GuardWait)
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("config: session-idle-ttl must be positive, got %s", c.SessionIdleTTL)
	}
	if c.AuthRate <= 0 || c.AuthBurst <= 0 {
		return errors.New("config: auth-rate and auth-burst must be positive")
	}
	return nil
}

// NormalizeURL trims whitespace and trailing slashes.
func NormalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("config: %s must be between 1 and 65535, got %d", field, port)
	}
	return nil
}
