// Package config loads the server configuration from YAML.
// A missing file is not an error: defaults are returned instead.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "bucket-server.yaml"

// Config is the root of the YAML document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Game      GameConfig      `yaml:"game"`
	Countdown CountdownConfig `yaml:"countdown"`
	Storage   StorageConfig   `yaml:"storage"`
	Tuning    Tuning          `yaml:"tuning"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// GameConfig is the default puzzle handed to new sessions.
type GameConfig struct {
	CapacityA         int  `yaml:"capacity_a" validate:"gte=0"`
	CapacityB         int  `yaml:"capacity_b" validate:"gte=0"`
	Target            int  `yaml:"target" validate:"gt=0"`
	TimeLimit         int  `yaml:"time_limit" validate:"gte=0"`
	StrictWin         bool `yaml:"strict_win"`
	StrictSolvability bool `yaml:"strict_solvability"`
}

// CountdownConfig controls how armed bombs are ticked.
type CountdownConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Manual   bool          `yaml:"manual"`
}

// StorageConfig points at the journal database.
type StorageConfig struct {
	DSN string `yaml:"dsn" validate:"required"`
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=auto text json"`
}

// TracingConfig toggles the stdout span exporter.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Game: GameConfig{
			CapacityA:         3,
			CapacityB:         5,
			Target:            4,
			TimeLimit:         30,
			StrictSolvability: true,
		},
		Countdown: CountdownConfig{
			Interval: time.Second,
		},
		Storage: StorageConfig{
			DSN: ":memory:",
		},
		Tuning: DefaultTuning(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Tracing: TracingConfig{
			ServiceName: "bucket-server",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Tuning.Profile != "" && cfg.Tuning.Profile != ProfileDefault {
		profile, err := TuningProfile(cfg.Tuning.Profile)
		if err != nil {
			return Default(), err
		}
		cfg.Tuning = overlayTuning(profile, cfg.Tuning)
	}

	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg Config) error {
	serialized, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config yaml: %w", err)
	}
	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
