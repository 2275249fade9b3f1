package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type SyncConfig struct {
	Retries        int `mapstructure:"retries"`
	BackoffSeconds int `mapstructure:"backoff_seconds"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

func (s SyncConfig) Backoff() time.Duration {
	return time.Duration(s.BackoffSeconds) * time.Second
}

func (s SyncConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type Config struct {
	LogLevel   string `mapstructure:"log_level"`
	ListenAddr string `mapstructure:"listen_addr"`

	FreshnessWindowMinutes uint `mapstructure:"freshness_window_minutes"`

	Sync SyncConfig `mapstructure:"sync"`

	Storage Storage `mapstructure:"storage"`
}

func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.FreshnessWindowMinutes) * time.Minute
}

var Cfg *Config

// Check if running in Docker container by checking for the presence of /.dockerenv file
func runningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

func getConfigPath() string {
	if runningInDocker() {
		return "/app/instance"
	}
	return "./instance"
}

// LoadConfig reads configuration from environment variables and an optional
// config file, and populates the package-level Cfg.
func LoadConfig(configFile ...string) (*Config, error) {
	var cfg Config

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(getConfigPath())
	v.AddConfigPath(".")
	v.SetEnvPrefix("")

	if len(configFile) > 0 {
		for _, path := range configFile {
			v.SetConfigFile(path)
		}
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	// Load configuration from environment variables
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}

	// Convert relative sqlite path to the instance folder
	if cfg.Storage.SQLite != nil {
		if cfg.Storage.SQLite.Path == ":memory:" {
			// In-memory database, do nothing
		} else if !os.IsPathSeparator(cfg.Storage.SQLite.Path[0]) && cfg.Storage.SQLite.Path[0] != '.' {
			cfg.Storage.SQLite.Path = fmt.Sprintf("%s/%s", getConfigPath(), cfg.Storage.SQLite.Path)
		}
	}

	Cfg = &cfg
	return &cfg, nil
}
