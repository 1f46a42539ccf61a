package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/relabs-tech/motion_link/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// Init configures the process logger. level is one of debug, info, warn,
// error; anything else falls back to info.
func Init(level string, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	if isService {
		output.NoColor = true
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}
	log = zerolog.New(output).With().Timestamp().Logger()
	SetLevel(level)
}

// InitWriter points the logger at w with no console formatting.
// Tests use it to capture output.
func InitWriter(w io.Writer, level string) {
	log = zerolog.New(w).With().Timestamp().Logger()
	SetLevel(level)
}

// SetLevel sets the global log level by name.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// IsService checks if the process runs without an interactive terminal
// (systemd unit, init child).
func IsService() bool {
	if os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}
	return syscall.Getpgrp() == syscall.Getpid() && os.Getenv("TERM") == ""
}

// Component returns a child logger tagged with component=name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func Debug() *zerolog.Event { return log.Debug() }

func Info() *zerolog.Event { return log.Info() }

func Warn() *zerolog.Event { return log.Warn() }

func Error() *zerolog.Event { return log.Error() }

func Fatal() *zerolog.Event { return log.Fatal() }

// ErrorWithCode logs err and attaches its code when it carries one.
func ErrorWithCode(err error) *zerolog.Event {
	ev := log.Error().Err(err)
	var coded errors.Error
	if errors.As(err, &coded) {
		ev = ev.Str("error_code", string(coded.Code()))
	}
	return ev
}
