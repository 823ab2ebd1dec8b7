package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Corvus
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Ledger      LedgerConfig  `toml:"ledger"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string  `toml:"host"`
	Port          int     `toml:"port"`
	RatePerSecond float64 `toml:"rate_per_second"` // request rate limit, 0 disables
	RateBurst     int     `toml:"rate_burst"`
}

// StorageConfig holds path configuration for the 2 storage areas.
type StorageConfig struct {
	Ledger    AreaConfig `toml:"ledger"`    // entities, accounts, holdings, transactions, snapshots, audit (BadgerHold)
	Reference AreaConfig `toml:"reference"` // prices + exchange rates (BadgerHold)
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// LedgerConfig holds posting and aggregation behavior.
type LedgerConfig struct {
	BaseCurrency     string `toml:"base_currency"`     // reporting currency for net worth (default "USD")
	LockWait         string `toml:"lock_wait"`         // bounded wait for per-account/holding locks
	SnapshotInterval string `toml:"snapshot_interval"` // periodic net worth snapshot interval, "" disables
}

// GetLockWait parses and returns the bounded lock wait duration.
func (c *LedgerConfig) GetLockWait() time.Duration {
	d, err := time.ParseDuration(c.LockWait)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// GetSnapshotInterval parses the snapshot scheduler interval. Zero disables
// the scheduler.
func (c *LedgerConfig) GetSnapshotInterval() time.Duration {
	if c.SnapshotInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.SnapshotInterval)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			RatePerSecond: 50,
			RateBurst:     100,
		},
		Storage: StorageConfig{
			Ledger:    AreaConfig{Path: "data/ledger"},
			Reference: AreaConfig{Path: "data/reference"},
		},
		Ledger: LedgerConfig{
			BaseCurrency:     "USD",
			LockWait:         "2s",
			SnapshotInterval: "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	validateBaseCurrency(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CORVUS_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("CORVUS_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("CORVUS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("CORVUS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("CORVUS_DATA_PATH"); path != "" {
		config.Storage.Ledger.Path = filepath.Join(path, "ledger")
		config.Storage.Reference.Path = filepath.Join(path, "reference")
	}

	if cur := os.Getenv("CORVUS_BASE_CURRENCY"); cur != "" {
		config.Ledger.BaseCurrency = strings.ToUpper(cur)
	}

	if wait := os.Getenv("CORVUS_LOCK_WAIT"); wait != "" {
		config.Ledger.LockWait = wait
	}

	if interval := os.Getenv("CORVUS_SNAPSHOT_INTERVAL"); interval != "" {
		config.Ledger.SnapshotInterval = interval
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// validateBaseCurrency normalizes the base currency to an upper-case code,
// defaulting to USD when unset or malformed.
func validateBaseCurrency(config *Config) {
	cur := strings.ToUpper(strings.TrimSpace(config.Ledger.BaseCurrency))
	if len(cur) != 3 {
		cur = "USD"
	}
	config.Ledger.BaseCurrency = cur
}
