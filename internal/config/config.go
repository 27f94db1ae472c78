// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the generator's environment configuration. Command-line
// flags override these values.
type Config struct {
	// Environment is reported as the telemetry deployment environment.
	Environment string `env:"APP_ENV" envDefault:"development"`

	// LogLevel is a zerolog level name.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// OTelEnabled turns on OTLP trace and metric export.
	OTelEnabled bool `env:"OTEL_ENABLED" envDefault:"false"`

	// OTLPEndpoint is the OTLP gRPC collector address.
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`

	// OTelSampleRatio is the fraction of document traces exported.
	OTelSampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1"`

	// Output is the path of the zip archive to write.
	Output string `env:"TAKEOUTFAKER_OUTPUT" envDefault:"Location History.zip"`

	// VariantsFile is an optional YAML variant table replacing the built-in one.
	VariantsFile string `env:"TAKEOUTFAKER_VARIANTS"`

	// Years restricts generation to these variant years. Empty means every
	// year in the variant table.
	Years []int `env:"TAKEOUTFAKER_YEARS" envSeparator:","`

	// Concurrency is the number of variants generated in parallel.
	Concurrency int `env:"TAKEOUTFAKER_CONCURRENCY" envDefault:"3"`

	// Seed makes a run reproducible. Nil picks a random seed.
	Seed *uint64 `env:"TAKEOUTFAKER_SEED"`

	// Country selects the region places are scattered around.
	Country string `env:"TAKEOUTFAKER_COUNTRY" envDefault:"NL"`

	// Legacy reproduces the legacy fixture encoding.
	Legacy bool `env:"TAKEOUTFAKER_LEGACY"`

	// FailFast stops the batch at the first failed variant.
	FailFast bool `env:"TAKEOUTFAKER_FAIL_FAST"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates a Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency %d", ErrInvalidConfig, c.Concurrency)
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("%w: trace sample ratio %v", ErrInvalidConfig, c.OTelSampleRatio)
	}
	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("%w: empty output path", ErrInvalidConfig)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return level, nil
}
