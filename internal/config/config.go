// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server  ServerConfig
	PokeAPI PokeAPIConfig
	Fetch   FetchConfig
	Import  ImportConfig
	Jobs    JobsConfig
	Logging LoggingConfig
	Metrics MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// AllowedOrigins lists CORS origins for the browser UI (default: *)
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// PokeAPIConfig holds settings for the remote catalog.
type PokeAPIConfig struct {
	// BaseURL is the API root (default: https://pokeapi.co/api/v2)
	BaseURL string `env:"POKEAPI_BASE_URL" default:"https://pokeapi.co/api/v2"`

	// Timeout bounds each HTTP request (default: 30s)
	Timeout time.Duration `env:"POKEAPI_TIMEOUT" default:"30s"`

	// UserAgent is sent with every request (default: pokelab)
	UserAgent string `env:"POKEAPI_USER_AGENT" default:"pokelab"`
}

// FetchConfig holds catalog fetch settings.
type FetchConfig struct {
	// BatchSize is the number of detail requests issued concurrently (default: 50)
	BatchSize int `env:"FETCH_BATCH_SIZE" default:"50"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" envAlt:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// ChunkSize is the number of rows converted between progress reports (default: 1000)
	ChunkSize int `env:"IMPORT_CHUNK_SIZE" default:"1000"`
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	// Timeout is the maximum duration of a single fetch or import (default: 10m)
	Timeout time.Duration `env:"JOB_TIMEOUT" default:"10m"`

	// Retention is how long finished jobs stay queryable (default: 5m)
	Retention time.Duration `env:"JOB_RETENTION" default:"5m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Namespace prefixes every metric name (default: pokelab)
	Namespace string `env:"METRICS_NAMESPACE" default:"pokelab"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
