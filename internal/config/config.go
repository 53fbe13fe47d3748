// Package config loads chartkit configuration from file, environment and
// defaults, in that precedence order (highest last).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved configuration.
type Config struct {
	// DataDir holds the session files and the library/outbox databases.
	DataDir string `mapstructure:"data_dir"`

	Remote struct {
		// URL is the hosted store base URL. Empty disables remote sync.
		URL string `mapstructure:"url"`
		// Key is the anonymous API key.
		Key string `mapstructure:"key"`
		// Token is the optional user access token.
		Token string `mapstructure:"token"`
	} `mapstructure:"remote"`

	Library struct {
		// SaveInterval is the minimum interval between library saves.
		SaveInterval time.Duration `mapstructure:"save_interval"`
		// MaxChartBytes caps a chart's serialized size.
		MaxChartBytes int `mapstructure:"max_chart_bytes"`
	} `mapstructure:"library"`

	Daemon struct {
		// Port is the dashboard listen port.
		Port int `mapstructure:"port"`
		// LogFile receives rotated daemon logs; empty logs to stderr.
		LogFile string `mapstructure:"log_file"`
		// Debounce batches outbox changes before triggering a sync.
		Debounce time.Duration `mapstructure:"debounce"`
		// BackupCheck is how often the daily-backup marker is checked.
		BackupCheck time.Duration `mapstructure:"backup_check"`
	} `mapstructure:"daemon"`
}

// Load reads configuration from chartkit.yaml (current directory or
// ~/.config/chartkit), CHARTKIT_* environment variables and built-in
// defaults. A missing config file is fine; a malformed one is an error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("library.save_interval", 2*time.Second)
	v.SetDefault("library.max_chart_bytes", 1<<20)
	v.SetDefault("daemon.port", 8080)
	v.SetDefault("daemon.debounce", 500*time.Millisecond)
	v.SetDefault("daemon.backup_check", time.Hour)

	v.SetConfigName("chartkit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "chartkit"))
	}

	v.SetEnvPrefix("CHARTKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// SessionDir returns the directory for session key-value files.
func (c *Config) SessionDir() string {
	return filepath.Join(c.DataDir, "session")
}

// LibraryPath returns the library database file path.
func (c *Config) LibraryPath() string {
	return filepath.Join(c.DataDir, "library.db")
}

// OutboxPath returns the outbox database file path.
func (c *Config) OutboxPath() string {
	return filepath.Join(c.DataDir, "outbox.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chartkit"
	}
	return filepath.Join(home, ".chartkit")
}
