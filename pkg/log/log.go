// Package log provides the logging interface used throughout the
// front end, backed by zerolog.
package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Fatal(str string)
}

type logger struct {
	z zerolog.Logger
}

// New returns a Logger writing human readable output to stderr
// at info level.
func New() Logger {
	l, _ := NewWithLevel(os.Stderr, "info")
	return l
}

// NewWithLevel returns a Logger writing to w, discarding anything
// below the named level (trace, debug, info, warn, error).
func NewWithLevel(w io.Writer, level string) (Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: w != os.Stderr}
	return &logger{z: zerolog.New(out).Level(lvl).With().Timestamp().Logger()}, nil
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.z.Info().Msgf(format, args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.z.Error().Msgf(format, args...)
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.z.Debug().Msgf(format, args...)
}

// Fatal logs str and exits the process.
func (l *logger) Fatal(str string) {
	l.z.Fatal().Msg(str)
}
