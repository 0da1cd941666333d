package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file configuration.
const (
	EnvConfigPath          = "CONFIG_PATH"
	EnvDBConnection        = "DB_CONNECTION"
	EnvVaultMasterSecret   = "VAULT_MASTER_SECRET"
	EnvVaultFallbackSecret = "VAULT_FALLBACK_SECRET"
)

// DefaultPort is used when the config omits or invalidates the port.
const DefaultPort = 8417

// ErrMissingDatabaseDSN indicates no database DSN is present in the config.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` in config file or env DB_CONNECTION)")

// Duration wraps time.Duration with YAML parsing of strings like "10m".
type Duration time.Duration

// UnmarshalYAML parses a duration string or an integer number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var seconds int64
	if errDecode := value.Decode(&seconds); errDecode == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	var raw string
	if errDecode := value.Decode(&raw); errDecode != nil {
		return fmt.Errorf("config: invalid duration value")
	}
	parsed, errParse := time.ParseDuration(strings.TrimSpace(raw))
	if errParse != nil {
		return fmt.Errorf("config: parse duration %q: %w", raw, errParse)
	}
	*d = Duration(parsed)
	return nil
}

// RateLimitEntry configures one action class.
type RateLimitEntry struct {
	Limit  int      `yaml:"limit"`
	Window Duration `yaml:"window"`
}

// VaultConfig holds the master encryption secret and its fallback source.
type VaultConfig struct {
	MasterSecret   string `yaml:"master-secret"`
	FallbackSecret string `yaml:"fallback-secret"`
}

// RedisConfig enables the shared rate-limit backend.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Config holds resolved application configuration values.
type Config struct {
	DatabaseDSN string                    `yaml:"database-dsn"`
	Port        int                       `yaml:"port"`
	Vault       VaultConfig               `yaml:"vault"`
	RateLimits  map[string]RateLimitEntry `yaml:"rate-limits"`
	Redis       RedisConfig               `yaml:"redis"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file and applies env overrides and defaults.
// A missing file is not an error as long as the required values arrive from
// the environment.
func Load(configPath string) (Config, error) {
	var cfg Config

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", configPath, errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return Config{}, fmt.Errorf("config: read %s: %w", configPath, errRead)
	}

	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvVaultMasterSecret)); secret != "" {
		cfg.Vault.MasterSecret = secret
	}
	if secret := strings.TrimSpace(os.Getenv(EnvVaultFallbackSecret)); secret != "" {
		cfg.Vault.FallbackSecret = secret
	}

	cfg.DatabaseDSN = strings.TrimSpace(cfg.DatabaseDSN)
	if cfg.DatabaseDSN == "" {
		return Config{}, ErrMissingDatabaseDSN
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = DefaultPort
	}
	if strings.TrimSpace(cfg.Redis.Prefix) == "" {
		cfg.Redis.Prefix = "gardenbot:rl"
	}
	return cfg, nil
}
