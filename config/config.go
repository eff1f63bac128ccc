// Package config holds the service configuration: defaults, an
// optional YAML file, and environment overrides, in that order.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultIndexURL      = "https://pypi.org"
	DefaultSQLitePath    = "./data/piplock.db"
	DefaultPort          = "8080"
	DefaultSchedule      = "0 0 * * *"
	DefaultMaxConcurrent = 10
)

type Config struct {
	Port            string   `yaml:"port"`
	SQLitePath      string   `yaml:"sqlite_path"`
	IndexURL        string   `yaml:"index_url"`
	RefreshSchedule string   `yaml:"refresh_schedule"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	MaxConcurrent   int      `yaml:"max_concurrent"`
}

func Default() Config {
	return Config{
		Port:            DefaultPort,
		SQLitePath:      DefaultSQLitePath,
		IndexURL:        DefaultIndexURL,
		RefreshSchedule: DefaultSchedule,
		AllowedOrigins:  []string{"http://localhost:5173"},
		MaxConcurrent:   DefaultMaxConcurrent,
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty or absent), and environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("PIPLOCK_INDEX_URL"); v != "" {
		cfg.IndexURL = v
	}
	if v := os.Getenv("PIPLOCK_REFRESH_SCHEDULE"); v != "" {
		cfg.RefreshSchedule = v
	}

	return cfg, nil
}
