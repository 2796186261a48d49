package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mscfb "github.com/asalih/go-mscfb-scan"
	"github.com/asalih/go-mscfb-scan/internal/util"
)

func TestNewConfig_WithNilOverride(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(nil)

	require.NotNil(t, cfg)
	assert.Equal(t, NewDefaultConfig(), cfg, "must use default values when no config provided")
	assert.Equal(t, util.InfoLevel, cfg.LogLvl)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig_WithAllOverride(t *testing.T) {
	t.Parallel()

	override := &ConfigOverride{
		Marker:       util.Pointer("Package"),
		Validation:   util.Pointer("strict"),
		Workers:      util.Pointer(1),
		IgnoreErrors: util.Pointer(true),
		LogLvl:       util.Pointer(4),
	}
	cfg := NewConfig(override)

	assert.Equal(t, &Config{
		Marker:       "Package",
		Validation:   "strict",
		Workers:      1,
		IgnoreErrors: true,
		LogLvl:       util.DebugLevel,
	}, cfg)

	mode, err := cfg.ValidationMode()
	require.NoError(t, err)
	assert.Equal(t, mscfb.ValidationStrict, mode)
}

func TestConfig_Merge_LogLvlConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		verboseValue  int
		expectedLevel util.LogLevel
	}{
		{"verbose_1_error", 1, util.ErrorLevel},
		{"verbose_2_warn", 2, util.WarnLevel},
		{"verbose_3_info", 3, util.InfoLevel},
		{"verbose_4_debug", 4, util.DebugLevel},
		{"verbose_5_trace", 5, util.TraceLevel},
		{"verbose_0_clamped_to_1", 0, util.ErrorLevel},
		{"verbose_100_clamped_to_5", 100, util.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(&ConfigOverride{LogLvl: &tt.verboseValue})
			assert.Equal(t, tt.expectedLevel, cfg.LogLvl)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		override *ConfigOverride
	}{
		{"empty marker", &ConfigOverride{Marker: util.Pointer("")}},
		{"zero workers", &ConfigOverride{Workers: util.Pointer(0)}},
		{"unknown validation", &ConfigOverride{Validation: util.Pointer("lenient")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewConfig(tt.override).Validate())
		})
	}
}

func TestNewConfigFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "scan.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("marker: Ole10\nworkers: 2\nignore_errors: true\n"), 0o600))

	cfg, err := NewConfigFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "Ole10", cfg.Marker)
	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.IgnoreErrors)
	assert.Equal(t, DefaultValidation, cfg.Validation, "unset fields keep defaults")

	jsonPath := filepath.Join(dir, "scan.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"validation":"strict","verbose":1}`), 0o600))

	cfg, err = NewConfigFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "strict", cfg.Validation)
	assert.Equal(t, util.ErrorLevel, cfg.LogLvl)
	assert.Equal(t, DefaultMarker, cfg.Marker)
}

func TestLoadConfigOverrideFile_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := LoadConfigOverrideFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	tomlPath := filepath.Join(dir, "scan.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("marker = 'x'"), 0o600))
	_, err = LoadConfigOverrideFile(tomlPath)
	assert.ErrorContains(t, err, "unknown config file extension")

	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("workers: [1, 2"), 0o600))
	_, err = LoadConfigOverrideFile(badPath)
	assert.ErrorContains(t, err, "failed to unmarshal")
}
