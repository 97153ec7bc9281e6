// Package config loads the onboarding service configuration from environment
// variables. Every field carries its variable name and default in struct
// tags; Load fails fast listing every problem at once.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Import   ImportConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds non-import requests. Imports run to completion.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds PostgreSQL pool settings. URL is required when the
// postgres store driver is selected.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL" envAlt:"DB_URL" secret:"true"`
	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string `env:"STORE_DRIVER" default:"postgres"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" default:"true"`
}

// ImportConfig tunes the onboarding pipeline.
type ImportConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default 10MB).
	MaxFileSize       int64         `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`
	MaxConcurrent     int           `env:"IMPORT_MAX_CONCURRENT" default:"5"`
	MaxWaitTime       time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`
	RowWorkers        int           `env:"IMPORT_ROW_WORKERS" default:"4"`
	RowTimeout        time.Duration `env:"IMPORT_ROW_TIMEOUT" default:"30s"`
	PasswordLength    int           `env:"IMPORT_PASSWORD_LENGTH" default:"12"`
	MaxStoredFailures int           `env:"IMPORT_MAX_STORED_FAILURES" default:"1000"`
}

// SecurityConfig holds API authentication settings.
type SecurityConfig struct {
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS" secret:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
