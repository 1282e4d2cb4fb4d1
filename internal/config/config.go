// Package config loads ionhash CLI configuration.
//
// Values are resolved in order, later sources winning:
//   - built-in defaults (Default)
//   - a YAML file named by --config or the IONHASH_CONFIG variable
//   - IONHASH_* environment variables
//
// Command-line flags are applied by the caller on top of the result.
// A missing config path is not an error; a named file that cannot be
// read is.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Neumenon/ionhash/internal/compress"
	"github.com/Neumenon/ionhash/ionhash"
)

// PathVariable names the environment variable holding the config path.
const PathVariable = "IONHASH_CONFIG"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IONHASH_"

// Output formats for digest reports.
const (
	OutputHex  = "hex"
	OutputJSON = "json"
	OutputCBOR = "cbor"
	OutputDiag = "diag" // CBOR diagnostic notation, one record per line
)

// Config is the CLI configuration.
type Config struct {
	// Algorithm is the default hash algorithm (see ionhash.Algorithms).
	Algorithm string `yaml:"algorithm" env:"ALGORITHM"`

	// Output selects the report format: hex, json, cbor or diag.
	Output string `yaml:"output" env:"OUTPUT"`

	// MaxDepth bounds container nesting while hashing.
	MaxDepth int `yaml:"max_depth" env:"MAX_DEPTH"`

	// LogLevel is the slog level for diagnostics on stderr.
	LogLevel slog.Level `yaml:"log_level" env:"LOG_LEVEL"`

	// Frames configures the frame reader and writer.
	Frames FramesConfig `yaml:"frames" envPrefix:"FRAMES_"`
}

// FramesConfig configures framed transport.
type FramesConfig struct {
	// Compression applied to doc payloads by the frame writer.
	Compression compress.Encoding `yaml:"compression" env:"COMPRESSION"`

	// CRC adds a CRC-32 to every written frame.
	CRC bool `yaml:"crc" env:"CRC"`

	// MaxPayload bounds a payload both as sent and once decompressed.
	MaxPayload int `yaml:"max_payload" env:"MAX_PAYLOAD"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Algorithm: "sha256",
		Output:    OutputHex,
		MaxDepth:  ionhash.DefaultMaxDepth,
		LogLevel:  slog.LevelInfo,
		Frames: FramesConfig{
			Compression: compress.None,
			MaxPayload:  64 * 1024 * 1024,
		},
	}
}

// Load resolves configuration from path (or $IONHASH_CONFIG when path
// is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(PathVariable)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a YAML file into c. Unknown keys are rejected so a
// misspelled option does not silently fall back to its default.
func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields whose IONHASH_* variable is set.
func (c *Config) applyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(ionhash.Algorithms(), c.Algorithm) {
		errs = append(errs, fmt.Errorf("unknown algorithm %q", c.Algorithm))
	}
	switch c.Output {
	case OutputHex, OutputJSON, OutputCBOR, OutputDiag:
	default:
		errs = append(errs, fmt.Errorf("invalid output %q: want hex, json, cbor or diag", c.Output))
	}
	if c.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth))
	}
	if c.Frames.MaxPayload <= 0 {
		errs = append(errs, fmt.Errorf("frames.max_payload must be positive, got %d", c.Frames.MaxPayload))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
