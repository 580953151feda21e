package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Planner holds all configuration for a planning run.
type Planner struct {
	LogLevel string `yaml:"log_level" env:"MODPLANNER_LOG_LEVEL"`

	// Search
	Workers      int `yaml:"workers" env:"MODPLANNER_WORKERS"`             // goroutines per character search
	CandidateCap int `yaml:"candidate_cap" env:"MODPLANNER_CANDIDATE_CAP"` // 0 = exact

	// Roster behaviour
	KeepEquipped       bool    `yaml:"keep_equipped" env:"MODPLANNER_KEEP_EQUIPPED"`
	ModChangeThreshold float64 `yaml:"mod_change_threshold" env:"MODPLANNER_MOD_CHANGE_THRESHOLD"` // percent

	// Data
	CatalogPath   string `yaml:"catalog_path" env:"MODPLANNER_CATALOG_PATH"` // empty = embedded catalog
	InventoryPath string `yaml:"inventory_path" env:"MODPLANNER_INVENTORY_PATH"`
	AllyCode      string `yaml:"ally_code" env:"MODPLANNER_ALLY_CODE"`

	// Database
	UseDatabase bool           `yaml:"use_database" env:"MODPLANNER_USE_DATABASE"`
	Database    DatabaseConfig `yaml:"database" envPrefix:"MODPLANNER_DB_"`

	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"MODPLANNER_OTEL_"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"` // OTLP/HTTP URL
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// DefaultPlanner returns Planner config with sensible defaults.
func DefaultPlanner() Planner {
	return Planner{
		LogLevel:           "info",
		Workers:            runtime.NumCPU(),
		CandidateCap:       0,
		KeepEquipped:       false,
		ModChangeThreshold: 0,
		InventoryPath:      "inventory.yaml",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "modplanner",
			Password: "modplanner",
			DBName:   "modplanner",
			SSLMode:  "disable",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "modplanner",
		},
	}
}

// LoadPlanner loads planner config from a YAML file, then applies
// MODPLANNER_* environment variables on top.
// If the file doesn't exist, the environment is applied to defaults.
func LoadPlanner(path string) (Planner, error) {
	cfg := DefaultPlanner()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseEnv overlays environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks ranges and required combinations.
func (c Planner) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalid, c.Workers)
	}
	if c.CandidateCap < 0 {
		return fmt.Errorf("%w: candidate_cap must be >= 0, got %d", ErrInvalid, c.CandidateCap)
	}
	if c.ModChangeThreshold < 0 || c.ModChangeThreshold > 100 {
		return fmt.Errorf("%w: mod_change_threshold must be in [0, 100], got %g", ErrInvalid, c.ModChangeThreshold)
	}
	if c.UseDatabase && c.AllyCode == "" {
		return fmt.Errorf("%w: use_database requires ally_code", ErrInvalid)
	}
	if !c.UseDatabase && c.InventoryPath == "" {
		return fmt.Errorf("%w: inventory_path is empty", ErrInvalid)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("%w: telemetry.endpoint is required when telemetry is enabled", ErrInvalid)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Planner) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return lvl, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return lvl, nil
}
