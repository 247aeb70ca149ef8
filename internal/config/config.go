// Package config loads and validates the Curatarr configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config holds the configuration for the Curatarr engine and its collaborators.
type Config struct {
	// DryRun indicates whether deletions should only be logged, not executed.
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`
	// Database holds the database configuration.
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Queue holds the job queue configuration.
	Queue QueueConfig `yaml:"queue" mapstructure:"queue"`

	// Jellyfin holds the configuration for the library server. Required.
	Jellyfin *JellyfinConfig `yaml:"jellyfin" mapstructure:"jellyfin"`
	// Jellystat holds the configuration for the watch-history server.
	Jellystat *JellystatConfig `yaml:"jellystat" mapstructure:"jellystat"`
	// Overseerr holds the configuration for the request tracker.
	Overseerr *OverseerrConfig `yaml:"overseerr" mapstructure:"overseerr"`
	// Radarr holds the configuration for the movie download manager.
	Radarr *RadarrConfig `yaml:"radarr" mapstructure:"radarr"`
	// Sonarr holds the configuration for the series download manager.
	Sonarr *SonarrConfig `yaml:"sonarr" mapstructure:"sonarr"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Path is the directory where the sqlite database is stored.
	Path string `yaml:"path" mapstructure:"path"`
}

// QueueConfig holds the job queue configuration.
type QueueConfig struct {
	// Workers is the number of concurrent queue workers.
	Workers int `yaml:"workers" mapstructure:"workers"`
	// PollInterval is the worker poll interval in seconds.
	PollInterval int `yaml:"poll_interval" mapstructure:"poll_interval"`
	// MaxDeletionAttempts is how often a failing deletion job is retried
	// before it is reported as permanently failed.
	MaxDeletionAttempts int `yaml:"max_deletion_attempts" mapstructure:"max_deletion_attempts"`
}

// JellyfinConfig holds the configuration for the Jellyfin server.
type JellyfinConfig struct {
	// URL is the base URL of the Jellyfin server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Jellyfin server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// JellystatConfig holds the configuration for the Jellystat server.
type JellystatConfig struct {
	// URL is the base URL of the Jellystat server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Jellystat server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// OverseerrConfig holds the configuration for the Overseerr server.
type OverseerrConfig struct {
	// URL is the base URL of the Overseerr server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Overseerr server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// RadarrConfig holds the configuration for the Radarr server.
type RadarrConfig struct {
	// URL is the base URL of the Radarr server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Radarr server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// SonarrConfig holds the configuration for the Sonarr server.
type SonarrConfig struct {
	// URL is the base URL of the Sonarr server.
	URL string `yaml:"url" mapstructure:"url"`
	// APIKey is the API key for the Sonarr server.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// Load reads the configuration from the given file path, falling back to the
// default search locations when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("CURATARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.curatarr")
		v.AddConfigPath("/etc/curatarr")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file is found, run with defaults and env overrides
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Environment variables with CURATARR_ prefix override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dry_run", false)
	v.SetDefault("database.path", "./data")

	// Queue defaults
	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.poll_interval", 5)
	v.SetDefault("queue.max_deletion_attempts", 3)
}

func validateConfig(c *Config) error {
	if c.Jellyfin == nil || c.Jellyfin.URL == "" {
		return fmt.Errorf("jellyfin configuration is required")
	}
	if c.Jellystat != nil && c.Jellystat.URL == "" {
		return fmt.Errorf("jellystat url is required when jellystat is configured")
	}
	if c.Overseerr != nil && c.Overseerr.URL == "" {
		return fmt.Errorf("overseerr url is required when overseerr is configured")
	}
	if c.Radarr != nil && c.Radarr.URL == "" {
		return fmt.Errorf("radarr url is required when radarr is configured")
	}
	if c.Sonarr != nil && c.Sonarr.URL == "" {
		return fmt.Errorf("sonarr url is required when sonarr is configured")
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be at least 1")
	}
	if c.Queue.MaxDeletionAttempts < 1 {
		return fmt.Errorf("queue.max_deletion_attempts must be at least 1")
	}
	return nil
}
