package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/Lumos-Labs-HQ/preload/internal/preload"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const FileName = "preload.config.json"

type Config struct {
	Version  string `json:"version" mapstructure:"version"`
	DataPath string `json:"data_path" mapstructure:"data_path"`
	// ListDataModel restricts the list pass to one model label.
	ListDataModel string     `json:"list_data_model,omitempty" mapstructure:"list_data_model"`
	Database      Database   `json:"database" mapstructure:"database"`
	ListFields    ListFields `json:"list_fields" mapstructure:"list_fields"`
	Log           Log        `json:"log" mapstructure:"log"`
}

type Database struct {
	Provider string `json:"provider" mapstructure:"provider"`
	URLEnv   string `json:"url_env" mapstructure:"url_env"`
	Driver   string `json:"driver,omitempty" mapstructure:"driver"` // pgx, pq, sqlite3, sqlite
}

type ListFields struct {
	Name         string `json:"name" mapstructure:"name"`
	DisplayName  string `json:"display_name" mapstructure:"display_name"`
	DisplayIndex string `json:"display_index" mapstructure:"display_index"`
}

type Log struct {
	Level string `json:"level" mapstructure:"level"`
}

var (
	supportedProviders = []string{"postgresql", "postgres", "mysql", "sqlite", "sqlite3"}
	supportedDrivers   = map[string][]string{
		"postgresql": {"pgx", "pq", "postgres"},
		"postgres":   {"pgx", "pq", "postgres"},
		"sqlite":     {"sqlite3", "sqlite", "modernc"},
		"sqlite3":    {"sqlite3", "sqlite", "modernc"},
	}
)

func Load() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.DataPath == "" {
		cfg.DataPath = "db/preload.yaml"
	}
	if cfg.Database.Provider == "" {
		cfg.Database.Provider = "postgresql"
	}
	if cfg.Database.URLEnv == "" {
		cfg.Database.URLEnv = "DATABASE_URL"
	}
	if cfg.ListFields.Name == "" {
		cfg.ListFields.Name = preload.DefaultListFields.Name
	}
	if cfg.ListFields.DisplayName == "" {
		cfg.ListFields.DisplayName = preload.DefaultListFields.DisplayName
	}
	if cfg.ListFields.DisplayIndex == "" {
		cfg.ListFields.DisplayIndex = preload.DefaultListFields.DisplayIndex
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}

func (c *Config) GetDatabaseURL() (string, error) {
	dbURL := os.Getenv(c.Database.URLEnv)
	if dbURL == "" {
		return "", fmt.Errorf("database URL not found in environment variable %s", c.Database.URLEnv)
	}
	return dbURL, nil
}

func (c *Config) Validate() error {
	if !slices.Contains(supportedProviders, c.Database.Provider) {
		return fmt.Errorf("unsupported database provider: %s. Supported providers: %v", c.Database.Provider, supportedProviders)
	}

	if c.Database.Driver != "" {
		drivers, ok := supportedDrivers[c.Database.Provider]
		if !ok || !slices.Contains(drivers, c.Database.Driver) {
			return fmt.Errorf("driver %s is not available for provider %s", c.Database.Driver, c.Database.Provider)
		}
	}

	if c.DataPath == "" {
		return fmt.Errorf("data_path cannot be empty")
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	return nil
}

func (c *Config) LogLevel() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

func (c *Config) PreloadListFields() preload.ListFields {
	return preload.ListFields{
		Name:         c.ListFields.Name,
		DisplayName:  c.ListFields.DisplayName,
		DisplayIndex: c.ListFields.DisplayIndex,
	}
}

func IsInitialized() bool {
	_, err := os.Stat(FileName)
	return err == nil
}
