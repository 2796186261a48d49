package util

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger = zerolog.Logger

// LogLevel represents available log levels
type LogLevel = int

// Log levels
const (
	TraceLevel LogLevel = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

// LevelFromVerbosity maps a 1 (error) to 5 (trace) verbosity to a LogLevel,
// clamping out of range values.
func LevelFromVerbosity(verbose int) LogLevel {
	if verbose < 1 {
		verbose = 1
	}
	if verbose > 5 {
		verbose = 5
	}
	lvls := [5]LogLevel{ErrorLevel, WarnLevel, InfoLevel, DebugLevel, TraceLevel}
	return lvls[verbose-1]
}

// InitializeLogger sets up the global logger on stderr, so that XML written
// to stdout stays clean. Commands re-initialize it once flags are parsed.
func InitializeLogger(level LogLevel) {
	InitializeLoggerTo(os.Stderr, level)
}

func InitializeLoggerTo(w io.Writer, level LogLevel) {
	zerolog.TimeFieldFormat = time.RFC3339

	switch level {
	case TraceLevel:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case DebugLevel:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case InfoLevel:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case WarnLevel:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case ErrorLevel:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}

	ctx := zerolog.New(output).With().Timestamp()
	if level == TraceLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	log.Debug().Msg("Logger initialized")
}

// GetLogger returns a configured logger for a specific component
func GetLogger(component string) Logger {
	return log.With().Str("component", component).Logger()
}

func Pointer[T any](v T) *T {
	return &v
}
