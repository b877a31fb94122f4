// Package config loads flowsync settings from defaults, an optional YAML
// file, FLOWSYNC_* environment variables and command-line overrides, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/flowsync/internal/catalog"
	"github.com/roach88/flowsync/internal/reconcile"
)

const (
	// AppName names the config file and its directory.
	AppName = "flowsync"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "FLOWSYNC"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the process configuration.
type Config struct {
	DBPath    string `mapstructure:"db_path"`
	LogFormat string `mapstructure:"log_format"`
	Verbose   bool   `mapstructure:"verbose"`

	Catalog CatalogConfig `mapstructure:"catalog"`
	Sync    SyncConfig    `mapstructure:"sync"`

	// File is the config file that was read. Empty when none was found.
	File string `mapstructure:"-"`
}

// CatalogConfig configures the remote catalog client.
type CatalogConfig struct {
	ListingURL    string        `mapstructure:"listing_url"`
	APIURL        string        `mapstructure:"api_url"`
	Token         string        `mapstructure:"token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Retries       int           `mapstructure:"retries"`
}

// SyncConfig configures scheduled passes.
type SyncConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	CheckUpdateDate bool          `mapstructure:"check_update_date"`
	Concurrency     int           `mapstructure:"concurrency"`
}

// Load reads the configuration. file, when non-empty, must exist;
// otherwise flowsync.yaml is looked up in the working directory and in
// $HOME/.config/flowsync, and a missing file is not an error. overrides
// are applied last, keyed like the file ("catalog.token").
func Load(file string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		addSearchPaths(v)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for k, val := range overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", AppName+".db")
	v.SetDefault("log_format", LogFormatText)
	v.SetDefault("verbose", false)

	v.SetDefault("catalog.listing_url", "")
	v.SetDefault("catalog.api_url", "")
	v.SetDefault("catalog.token", "")
	v.SetDefault("catalog.timeout", catalog.DefaultTimeout)
	v.SetDefault("catalog.rate_per_second", 0)
	v.SetDefault("catalog.retries", catalog.DefaultRetries)

	v.SetDefault("sync.interval", reconcile.DefaultInterval)
	v.SetDefault("sync.check_update_date", false)
	v.SetDefault("sync.concurrency", reconcile.DefaultConcurrency)
}

func addSearchPaths(v *viper.Viper) {
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", AppName))
	}
}

// Validate checks values that have no usable interpretation.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: db_path is required")
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("config: log_format must be %q or %q, got %q", LogFormatText, LogFormatJSON, c.LogFormat)
	}
	if c.Catalog.Timeout < 0 {
		return fmt.Errorf("config: catalog.timeout must not be negative")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("config: sync.interval must be positive")
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("config: sync.concurrency must be at least 1")
	}
	return nil
}

// RequireCatalog reports an error when no listing URL is configured.
func (c *Config) RequireCatalog() error {
	if c.Catalog.ListingURL == "" {
		return fmt.Errorf("config: catalog.listing_url is required (set it in %s.yaml or %s_CATALOG_LISTING_URL)", AppName, EnvPrefix)
	}
	return nil
}

// ClientConfig returns the catalog client configuration.
func (c *Config) ClientConfig() catalog.Config {
	return catalog.Config{
		ListingURL:    c.Catalog.ListingURL,
		APIURL:        c.Catalog.APIURL,
		Token:         c.Catalog.Token,
		Timeout:       c.Catalog.Timeout,
		RatePerSecond: c.Catalog.RatePerSecond,
		Retries:       c.Catalog.Retries,
	}
}
