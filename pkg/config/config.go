package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for ekaya-ingest.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (tokens) must only come from environment variables.
type Config struct {
	// Backend API base URL, e.g. https://app.example.com/api
	APIURL  string `yaml:"api_url" env:"INGEST_API_URL" env-default:"http://localhost:8000/api"`
	Version string `yaml:"-"` // Set at load time, not from config

	// HTTPTimeout bounds every backend request. Timeouts belong to the
	// transport; the session core never times out on its own.
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"INGEST_HTTP_TIMEOUT" env-default:"30s"`

	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

// AuthConfig holds where the bearer token comes from.
type AuthConfig struct {
	// Token is the bearer token itself. Secret - not in YAML.
	Token string `yaml:"-" env:"INGEST_TOKEN"`
	// TokenFile is read on every request when Token is empty, so an external
	// login can rotate it.
	TokenFile string `yaml:"token_file" env:"INGEST_TOKEN_FILE" env-default:""`
	// CheckExpiry rejects JWTs whose exp has passed before sending them.
	CheckExpiry bool `yaml:"check_expiry" env:"INGEST_TOKEN_CHECK_EXPIRY" env-default:"true"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"INGEST_LOG_LEVEL" env-default:"warn"`
	Format string `yaml:"format" env:"INGEST_LOG_FORMAT" env-default:"console"` // "console" or "json"
}

// IngestionConfig holds defaults forwarded to the backend.
type IngestionConfig struct {
	// ChunkSize is the processing chunk-size hint sent with schema discovery.
	ChunkSize int `yaml:"chunk_size" env:"INGEST_CHUNK_SIZE" env-default:"1000"`
}

// LedgerConfig holds history ledger reconciliation settings.
type LedgerConfig struct {
	// ReconcileWindow is how long an optimistic entry survives refreshes that
	// do not yet contain it. Zero means refresh replaces the ledger wholesale.
	ReconcileWindow time.Duration `yaml:"reconcile_window" env:"INGEST_RECONCILE_WINDOW" env-default:"5m"`
}

// Override adjusts a configuration after it is read and before it is
// validated, e.g. from command-line flags.
type Override func(*Config)

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error when path is DefaultPath; configuration then
// comes from the environment alone. An explicitly named file must exist.
func Load(path, version string, overrides ...Override) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		path = DefaultPath
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, os.ErrNotExist) && path == DefaultPath:
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
	}

	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// A CLI inside a container reaches a backend on the host through
	// host.docker.internal rather than localhost.
	resolved, err := ResolveURLForDocker(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api_url: %w", err)
	}
	cfg.APIURL = resolved

	return cfg, nil
}

// validate checks values cleanenv cannot express as tags.
func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("api_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_url must use http or https, got %q", c.APIURL)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.Ingestion.ChunkSize <= 0 {
		return fmt.Errorf("ingestion.chunk_size must be positive, got %d", c.Ingestion.ChunkSize)
	}
	if c.Ledger.ReconcileWindow < 0 {
		return fmt.Errorf("ledger.reconcile_window must not be negative, got %s", c.Ledger.ReconcileWindow)
	}
	return nil
}
