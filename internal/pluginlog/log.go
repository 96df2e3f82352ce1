// Package pluginlog provides the host's structured logging, shared across
// every pluginsystem and stagemanager package.
package pluginlog

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process-wide base logger. Component loggers derive from it.
var Log zerolog.Logger

// Init configures the global logger. Call once during host startup.
func Init(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().
		Str("service", "pluginhost").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// GetLogger returns the global logger instance.
func GetLogger() *zerolog.Logger {
	return &Log
}

// Registry creates a logger for plugin-registry lifecycle events.
func Registry() *zerolog.Logger {
	l := Log.With().Str("component", "registry").Logger()
	return &l
}

// Resolver creates a logger for dependency-resolution events.
func Resolver() *zerolog.Logger {
	l := Log.With().Str("component", "resolver").Logger()
	return &l
}

// Loader creates a logger for manifest-scan events.
func Loader() *zerolog.Logger {
	l := Log.With().Str("component", "loader").Logger()
	return &l
}

// FFI creates a logger for dynamic-load and VTable-call events.
func FFI() *zerolog.Logger {
	l := Log.With().Str("component", "ffi").Logger()
	return &l
}

// Stage creates a logger for stage-engine execution events.
func Stage() *zerolog.Logger {
	l := Log.With().Str("component", "stage").Logger()
	return &l
}
