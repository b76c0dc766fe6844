// Package logging provides the logger used throughout the planner. It wraps
// logrus so that callers deal with a small surface and the backend can be
// swapped in tests.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

type Config struct {
	Level  string
	Output io.Writer
}

type Logger struct {
	logger *logrus.Entry
}

func NewLogger(c Config) *Logger {
	backend := logrus.New()

	switch c.Level {
	case LevelDebug:
		backend.SetLevel(logrus.DebugLevel)
	case "", LevelInfo:
		backend.SetLevel(logrus.InfoLevel)
	case LevelWarn:
		backend.SetLevel(logrus.WarnLevel)
	case LevelError:
		backend.SetLevel(logrus.ErrorLevel)
	}

	if c.Output != nil {
		backend.SetOutput(c.Output)
	}

	return &Logger{logger: logrus.NewEntry(backend)}
}

// Discard returns a logger that drops everything. Used as the default when a
// caller does not supply a logger, and in tests.
func Discard() *Logger {
	backend := logrus.New()
	backend.SetOutput(io.Discard)
	return &Logger{logger: logrus.NewEntry(backend)}
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{logger: l.logger.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logger.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Errorf(format, args...)
}
