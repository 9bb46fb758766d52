// Package log is the structured logging layer of the pipeline.
//
// Code asks for a named Logger and logs key/value pairs using the dotted keys
// in attributes.go:
//
//	logger := log.GetLoggerWithName("training").With(log.StepKey, "train_random_forest")
//	logger.Info("Validation scores", log.R2ScoreKey, 0.56, log.MAEKey, 33.8)
//
// Records go to stderr as zerolog JSON unless another LoggerProvider is
// installed with SetProvider. SetupLogger also installs an slog default whose
// handler expands errors into stack traces and failing step names.
package log

import "context"

// Logger mirrors the slog method set. Error accepts the error as its first
// field: logger.Error("Step failed", err, log.StepKey, "data_check").
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	With(fields ...any) Logger
	Enabled(ctx context.Context, level Level) bool
}

// Level uses the slog.Level numbering so the two convert directly.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// LoggerProvider is a logging backend.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
