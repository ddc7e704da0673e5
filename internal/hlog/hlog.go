// Package hlog initializes and hands out the zerolog loggers every other
// package in this module logs through.
package hlog

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger with sane defaults. If logPath is
// non-empty, logs are written to that file (append mode) instead of stdout;
// if opening the file fails, logging falls back to stdout and an error is
// printed to stderr. level is parsed case-insensitively and defaults to info
// on an empty or unrecognized string.
func Init(logPath, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var w io.Writer = os.Stdout
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "hlog: failed to open log file %q: %v\n", logPath, err)
		}
	}
	log.Logger = log.Output(w).With().Timestamp().Logger()

	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl := zerolog.InfoLevel
	if level != "" {
		if l, err := zerolog.ParseLevel(level); err == nil {
			lvl = l
		}
	}
	zerolog.SetGlobalLevel(lvl)

	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
}

// Component returns a child logger tagged with a "component" field, for
// packages that want their log lines attributable without importing zerolog
// directly at every call site.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
