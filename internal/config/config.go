// Package config provides configuration management for the label agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort         = 8788
	DefaultLogLevel     = "info"
	DefaultDataDir      = ".heimdex-labels"
	DefaultOntologyTTL  = 10 * time.Minute
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 5

	// Environment variable names
	EnvPort         = "HEIMDEX_LABELS_PORT"
	EnvLogLevel     = "HEIMDEX_LABELS_LOG_LEVEL"
	EnvDataDir      = "HEIMDEX_LABELS_DATA_DIR"
	EnvOntologyTTL  = "HEIMDEX_LABELS_ONTOLOGY_TTL"
	EnvPollInterval = "HEIMDEX_LABELS_POLL_INTERVAL"
	EnvMaxAttempts  = "HEIMDEX_LABELS_MAX_ATTEMPTS"

	// Cloud environment variable names
	EnvCloudURL     = "HEIMDEX_LABELS_CLOUD_URL"
	EnvCloudToken   = "HEIMDEX_LABELS_CLOUD_TOKEN"
	EnvCloudOrgSlug = "HEIMDEX_LABELS_ORG_SLUG"

	// Database filename
	DBFilename = "labels.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportDir() string
	OntologyTTL() time.Duration
	PollInterval() time.Duration
	MaxAttempts() int
	CloudEnabled() bool
	CloudBaseURL() string
	CloudToken() string
	CloudOrgSlug() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port         int
	logLevel     string
	dataDir      string
	ontologyTTL  time.Duration
	pollInterval time.Duration
	maxAttempts  int

	cloudBaseURL string
	cloudToken   string
	cloudOrgSlug string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		ontologyTTL:  DefaultOntologyTTL,
		pollInterval: DefaultPollInterval,
		maxAttempts:  DefaultMaxAttempts,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	var err error
	if cfg.ontologyTTL, err = durationEnv(EnvOntologyTTL, cfg.ontologyTTL); err != nil {
		return nil, err
	}
	if cfg.pollInterval, err = durationEnv(EnvPollInterval, cfg.pollInterval); err != nil {
		return nil, err
	}
	if cfg.pollInterval <= 0 {
		return nil, fmt.Errorf("invalid %s: must be positive", EnvPollInterval)
	}

	if m := os.Getenv(EnvMaxAttempts); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMaxAttempts, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("invalid %s: must be at least 1", EnvMaxAttempts)
		}
		cfg.maxAttempts = n
	}

	cfg.cloudBaseURL = os.Getenv(EnvCloudURL)
	cfg.cloudToken = os.Getenv(EnvCloudToken)
	cfg.cloudOrgSlug = os.Getenv(EnvCloudOrgSlug)

	return cfg, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportDir is where exports land when the caller names no directory.
func (c *EnvConfig) ExportDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// OntologyTTL is how long a fetched ontology is reused. Zero disables
// expiry.
func (c *EnvConfig) OntologyTTL() time.Duration {
	return c.ontologyTTL
}

func (c *EnvConfig) PollInterval() time.Duration {
	return c.pollInterval
}

func (c *EnvConfig) MaxAttempts() int {
	return c.maxAttempts
}

// CloudEnabled reports whether enough is configured to talk to the
// annotation platform.
func (c *EnvConfig) CloudEnabled() bool {
	return c.cloudBaseURL != "" && c.cloudToken != ""
}

func (c *EnvConfig) CloudBaseURL() string {
	return c.cloudBaseURL
}

func (c *EnvConfig) CloudToken() string {
	return c.cloudToken
}

func (c *EnvConfig) CloudOrgSlug() string {
	return c.cloudOrgSlug
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
