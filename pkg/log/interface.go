// Package log is the structured logging layer of the fixture generator.
//
// Call sites log a message plus alternating key/value fields, using the keys
// declared in attributes.go:
//
//	logger := log.GetLoggerWithName("fixture").With(log.DatasetKey, "Iris")
//	logger.Info("model fitted",
//	    log.ModelNameKey, "GradientBoostingIris",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 150,
//	)
//
// SetupLogger installs a zerolog backed default. NewTestLogger captures JSON
// lines for assertions.
package log

import "context"

// Logger is the logging surface shared by the CLI, the fixture pipeline and
// the estimators. A leading error value in fields is recorded under
// ErrAttrKey together with its stack trace when it carries one.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a child logger that adds fields to every entry.
	With(fields ...any) Logger

	// Enabled reports whether entries at level are written. Callers use it
	// to skip building expensive fields such as file sizes.
	Enabled(ctx context.Context, level Level) bool
}

// Level follows the numeric values of slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

func (l Level) String() string {
	switch {
	case l <= LevelDebug:
		return "debug"
	case l <= LevelInfo:
		return "info"
	case l <= LevelWarn:
		return "warn"
	default:
		return "error"
	}
}
