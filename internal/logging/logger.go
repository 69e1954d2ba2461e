// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

// Package logging provides the process-wide zerolog logger for Basketcast.
//
// Every component logs through this package so that the feature job, the
// API server and the stream consumers share one format and one level:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("table", "user_features").Int("rows", n).Msg("Published features")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Recommendation failed")
//
// Adapters are provided for libraries that expect other logger types:
// NewSlogLogger for suture and NewWatermillLogger for watermill.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error, fatal, panic, disabled.
	Level string

	// Format is json or console.
	Format string

	// Caller adds file:line to every entry.
	Caller bool

	// NoTimestamp drops the time field, for golden-output tests.
	NoTimestamp bool

	// Service is stamped on every entry. Defaults to "basketcast".
	Service string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "json",
		Service: "basketcast",
		Output:  os.Stderr,
	}
}

var global atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // logging must work before Init is called
func init() {
	Init(DefaultConfig())
}

// Init reconfigures the global logger. It is safe to call more than once.
func Init(cfg Config) {
	d := DefaultConfig()
	if cfg.Format == "" {
		cfg.Format = d.Format
	}
	if cfg.Service == "" {
		cfg.Service = d.Service
	}
	if cfg.Output == nil {
		cfg.Output = d.Output
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.ErrorFieldName = "error"
	zerolog.CallerFieldName = "caller"

	out := cfg.Output
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(out).With().Str("service", cfg.Service)
	if !cfg.NoTimestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	SetLogger(ctx.Logger())
}

// parseLevel maps a config level to zerolog. "warning" is accepted for warn,
// and anything unrecognized means info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	return *global.Load()
}

// SetLogger replaces the global logger. Mostly useful in tests.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	global.Store(&l)
}

// With creates a child logger context from the global logger.
func With() zerolog.Context { return global.Load().With() }

// Trace starts a trace level message.
func Trace() *zerolog.Event { return global.Load().Trace() }

// Debug starts a debug level message.
func Debug() *zerolog.Event { return global.Load().Debug() }

// Info starts an info level message.
func Info() *zerolog.Event { return global.Load().Info() }

// Warn starts a warn level message.
func Warn() *zerolog.Event { return global.Load().Warn() }

// Error starts an error level message.
func Error() *zerolog.Event { return global.Load().Error() }

// Fatal starts a fatal level message. os.Exit(1) is called after it is written.
func Fatal() *zerolog.Event { return global.Load().Fatal() }

// Err starts an error level message with err attached.
func Err(err error) *zerolog.Event { return global.Load().Err(err) }

// SetLevelString updates the global level from a string.
func SetLevelString(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// NewTestLogger creates a JSON logger writing to w.
//
//	var buf bytes.Buffer
//	logging.SetLogger(logging.NewTestLogger(&buf))
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
