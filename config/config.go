package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	mscfb "github.com/asalih/go-mscfb-scan"
	"github.com/asalih/go-mscfb-scan/internal/util"
	"github.com/asalih/go-mscfb-scan/scan"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultMarker       = scan.DefaultMarker
	DefaultValidation   = "permissive"
	DefaultWorkers      = 4
	DefaultIgnoreErrors = false
	DefaultVerbose      = 3
)

// Config contains runtime configuration for a scan batch.
type Config struct {
	Marker       string        // Substring that flags embedded object streams, case-sensitive (Default "Ole")
	Validation   string        // "permissive" or "strict" container checks (Default "permissive")
	Workers      int           // Files processed in parallel (Default 4)
	IgnoreErrors bool          // Continue with the next file when one fails (Default false)
	LogLvl       util.LogLevel // Log level derived from verbosity 1 (error) to 5 (trace) (Default info)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	Marker       *string `yaml:"marker,omitempty" json:"marker,omitempty"`
	Validation   *string `yaml:"validation,omitempty" json:"validation,omitempty"`
	Workers      *int    `yaml:"workers,omitempty" json:"workers,omitempty"`
	IgnoreErrors *bool   `yaml:"ignore_errors,omitempty" json:"ignore_errors,omitempty"`
	LogLvl       *int    `yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		Marker:       DefaultMarker,
		Validation:   DefaultValidation,
		Workers:      DefaultWorkers,
		IgnoreErrors: DefaultIgnoreErrors,
		LogLvl:       util.LevelFromVerbosity(DefaultVerbose),
	}
}

// NewConfig returns the defaults with override applied. override may be nil.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
func (c *Config) Merge(override *ConfigOverride) {
	if override.Marker != nil {
		c.Marker = *override.Marker
	}
	if override.Validation != nil {
		c.Validation = *override.Validation
	}
	if override.Workers != nil {
		c.Workers = *override.Workers
	}
	if override.IgnoreErrors != nil {
		c.IgnoreErrors = *override.IgnoreErrors
	}
	if override.LogLvl != nil {
		c.LogLvl = util.LevelFromVerbosity(*override.LogLvl)
	}
}

// Validate checks values that cannot be merged blindly.
func (c *Config) Validate() error {
	if c.Marker == "" {
		return fmt.Errorf("marker must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := c.ValidationMode(); err != nil {
		return err
	}
	return nil
}

// ValidationMode parses the Validation field.
func (c *Config) ValidationMode() (mscfb.Validation, error) {
	return mscfb.ParseValidation(c.Validation)
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
