package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/datastack/datastack/pkg/stores"
	"github.com/datastack/datastack/pkg/telemetry"
	"github.com/datastack/datastack/pkg/transformers"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the name of the configuration file inside the data directory.
const DefaultFileName = "datastack.yaml"

// Environment variables overriding file values.
const (
	EnvDataDir  = "DATASTACK_DATA_DIR"
	EnvLogLevel = "DATASTACK_LOG_LEVEL"
	EnvInMemory = "DATASTACK_IN_MEMORY"
)

// Config is the datastack application configuration.
type Config struct {
	// DataDir holds store files.
	DataDir string `yaml:"data_dir" json:"data_dir" validate:"required"`

	Store     StoreConfig     `yaml:"store" json:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`

	// Transformers are Starlark value transformers registered at startup.
	// A transformer named like a built-in one replaces it.
	Transformers []TransformerConfig `yaml:"transformers,omitempty" json:"transformers,omitempty" validate:"dive"`
}

// TransformerConfig declares a scripted value transformer, inline or from a file.
type TransformerConfig struct {
	Name   string `yaml:"name" json:"name" validate:"required"`
	Script string `yaml:"script,omitempty" json:"script,omitempty" validate:"required_without=File,excluded_with=File"`
	File   string `yaml:"file,omitempty" json:"file,omitempty" validate:"required_without=Script"`
}

// StoreConfig selects the model and how its store is opened.
type StoreConfig struct {
	Model    string         `yaml:"model" json:"model" validate:"required"`
	InMemory bool           `yaml:"in_memory" json:"in_memory"`
	Recovery RecoveryConfig `yaml:"recovery" json:"recovery"`
}

// RecoveryConfig controls wiping incompatible stores.
type RecoveryConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	MaxRetries int  `yaml:"max_retries" json:"max_retries" validate:"gte=0,lte=3"`
}

// TelemetryConfig is the subset of telemetry settings exposed in the file.
type TelemetryConfig struct {
	LogLevel  string        `yaml:"log_level" json:"log_level" validate:"oneof=trace debug info warn error fatal"`
	LogFormat string        `yaml:"log_format" json:"log_format" validate:"oneof=console json"`
	Metrics   MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing   TracingConfig `yaml:"tracing" json:"tracing"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	ListenAddress string `yaml:"listen_address" json:"listen_address" validate:"required_if=Enabled true"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Exporter     string  `yaml:"exporter" json:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"required_if=Exporter otlp"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate" validate:"gte=0,lte=1"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir: stores.DefaultDirectory(),
		Store: StoreConfig{
			Model: "kennel",
			Recovery: RecoveryConfig{
				Enabled:    true,
				MaxRetries: 1,
			},
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "console",
			Metrics: MetricsConfig{
				ListenAddress: ":9090",
			},
			Tracing: TracingConfig{
				Exporter:     "none",
				SamplingRate: 1.0,
			},
		},
	}
}

// DefaultPath returns the configuration file path inside the default data directory.
func DefaultPath() string {
	return filepath.Join(stores.DefaultDirectory(), DefaultFileName)
}

// Load reads configuration from a YAML file over the defaults, applies
// environment overrides and validates the result. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Telemetry.LogLevel = strings.ToLower(v)
	}
	switch strings.ToLower(os.Getenv(EnvInMemory)) {
	case "1", "true", "yes":
		c.Store.InMemory = true
	}
}

// Validate checks struct constraints and the store section schema.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := NewSchemaRegistry().ValidateStore(context.Background(), c.Store); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// RecoveryPolicy returns the store recovery policy the configuration selects.
func (s StoreConfig) RecoveryPolicy() stores.RecoveryPolicy {
	if !s.Recovery.Enabled {
		return stores.NoRecovery()
	}
	policy := stores.DefaultRecoveryPolicy()
	policy.MaxRetries = s.Recovery.MaxRetries
	return policy
}

// TelemetryConfig builds the telemetry configuration for this application config.
func (c *Config) TelemetryConfig(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	tc.Logging.Level = c.Telemetry.LogLevel
	tc.Logging.Format = c.Telemetry.LogFormat

	tc.Metrics.Enabled = c.Telemetry.Metrics.Enabled
	if c.Telemetry.Metrics.ListenAddress != "" {
		tc.Metrics.ListenAddress = c.Telemetry.Metrics.ListenAddress
	}

	tc.Tracing.Exporter = c.Telemetry.Tracing.Exporter
	tc.Tracing.Enabled = c.Telemetry.Tracing.Exporter != "none"
	tc.Tracing.Endpoint = c.Telemetry.Tracing.Endpoint
	tc.Tracing.SamplingRate = c.Telemetry.Tracing.SamplingRate

	return tc
}

// RegisterTransformers compiles the configured transformers into r.
// Relative script files resolve against baseDir.
func (c *Config) RegisterTransformers(r *transformers.Registry, baseDir string) error {
	for _, tc := range c.Transformers {
		script := tc.Script
		if tc.File != "" {
			path := tc.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("transformer %s: failed to read script: %w", tc.Name, err)
			}
			script = string(data)
		}

		if err := transformers.SetScriptTransformer(r, tc.Name, script); err != nil {
			return err
		}
	}
	return nil
}
