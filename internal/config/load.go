package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configType = "yaml"
	envPrefix  = "VAULTHEAT"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Default values.
const (
	DefaultBackend   = BackendFile
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the runtime configuration of the CLI and the MCP server.
type Config struct {
	Vault    VaultConfig   `mapstructure:"vault"`
	Storage  StorageConfig `mapstructure:"storage"`
	Log      LogConfig     `mapstructure:"log"`
	Timezone string        `mapstructure:"timezone"`
}

// VaultConfig selects the tracked directory.
type VaultConfig struct {
	Path       string   `mapstructure:"path"`
	Extensions []string `mapstructure:"extensions"`
}

// StorageConfig selects where documents are persisted.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	// Dir overrides the per-vault data directory.
	Dir string `mapstructure:"dir"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file, env vars, and defaults. If configPath
// is empty the default config file is used. A missing config file is not an
// error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := configPath != ""
	if !explicit {
		configPath = GetConfigFile()
	}
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		if explicit || !isMissingFile(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("vault.path", ".")
	v.SetDefault("vault.extensions", []string{"md"})
	v.SetDefault("storage.backend", DefaultBackend)
	v.SetDefault("storage.dir", "")
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("timezone", "Local")
}

// isMissingFile reports whether the config file does not exist. viper
// reports a SetConfigFile miss as a plain fs error.
func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Storage.Backend)
	}

	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if len(c.Vault.Extensions) == 0 {
		return errors.New("vault.extensions must not be empty")
	}
	return nil
}

// Location returns the time zone used to bucket activity into dates.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DataDir returns the directory holding this vault's documents.
func (c *Config) DataDir(absVaultPath string) string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return GetVaultDataDir(absVaultPath)
}

func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}
