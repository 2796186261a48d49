package util

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbose  int
		expected LogLevel
	}{
		{-1, ErrorLevel},
		{1, ErrorLevel},
		{2, WarnLevel},
		{3, InfoLevel},
		{4, DebugLevel},
		{5, TraceLevel},
		{9, TraceLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, LevelFromVerbosity(tt.verbose), "verbose %d", tt.verbose)
	}
}

func TestInitializeLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	InitializeLoggerTo(&buf, WarnLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	logger := GetLogger("scan")
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "scan")
}

func TestInitializeLogger(t *testing.T) {
	InitializeLogger(DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
