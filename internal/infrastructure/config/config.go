package config

import (
	"fmt"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Policy     PolicyConfig
	Audit      AuditConfig
	Governance GovernanceConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// StorageConfig holds backend storage locations. UserRoot and the
// audit path derive from DataDir when left empty.
type StorageConfig struct {
	DataDir        string `envconfig:"DATA_DIR" default:"./data"`
	UserRoot       string `envconfig:"USER_ROOT" default:""`
	SystemManifest string `envconfig:"SYSTEM_MANIFEST" default:""`
}

// PolicyConfig holds policy engine configuration.
type PolicyConfig struct {
	QuotaBytes int64 `envconfig:"POLICY_QUOTA_BYTES" default:"52428800"`
}

// AuditConfig holds audit ledger configuration.
type AuditConfig struct {
	Path          string `envconfig:"AUDIT_PATH" default:""`
	HashAlgorithm string `envconfig:"AUDIT_HASH" default:"sha256"`
}

// GovernanceConfig holds boot gate configuration.
type GovernanceConfig struct {
	Root string `envconfig:"GOVERNANCE_ROOT" default:"."`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// CORSConfig holds cross-origin configuration.
type CORSConfig struct {
	Origins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.applyDerived()
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Policy: PolicyConfig{
			QuotaBytes: 50 * 1024 * 1024,
		},
		Audit: AuditConfig{
			HashAlgorithm: "sha256",
		},
		Governance: GovernanceConfig{
			Root: ".",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
		},
	}
	cfg.applyDerived()
	return cfg
}

// applyDerived fills locations that default relative to DataDir.
func (c *Config) applyDerived() {
	if c.Storage.UserRoot == "" {
		c.Storage.UserRoot = filepath.Join(c.Storage.DataDir, "user")
	}
	if c.Audit.Path == "" {
		c.Audit.Path = filepath.Join(c.Storage.DataDir, "audit", "ledger.ndjson")
	}
}
