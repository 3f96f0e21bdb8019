package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger handed to store containers.
type Logger struct {
	zlog zerolog.Logger
}

// NewLogger builds a logger writing to cfg.Output.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	var writer io.Writer
	switch cfg.Output {
	case "stdout":
		writer = os.Stdout
	case "stderr", "":
		writer = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		writer = file
	}

	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(writer).
		Level(ParseLogLevel(cfg.Level)).
		With().Timestamp().Logger()

	return &Logger{zlog: zlog}, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(zlog zerolog.Logger) *Logger {
	return &Logger{zlog: zlog}
}

// NewComponentLogger returns a child logger tagged with component.
func (l *Logger) NewComponentLogger(component string) *Logger {
	return l.with(l.zlog.With().Str("component", component))
}

// WithField returns a child logger with one extra field.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.with(l.zlog.With().Interface(key, value))
}

// WithModel tags the logger with a data model name.
func (l *Logger) WithModel(model string) *Logger {
	return l.with(l.zlog.With().Str("model", model))
}

// WithEntity tags the logger with an entity name.
func (l *Logger) WithEntity(entity string) *Logger {
	return l.with(l.zlog.With().Str("entity", entity))
}

// WithError attaches err to every message of the child logger.
func (l *Logger) WithError(err error) *Logger {
	return l.with(l.zlog.With().Err(err))
}

func (l *Logger) with(ctx zerolog.Context) *Logger {
	return &Logger{zlog: ctx.Logger()}
}

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }

func (l *Logger) Debugf(format string, args ...any) { l.zlog.Debug().Msgf(format, args...) }

func (l *Logger) Info(msg string) { l.zlog.Info().Msg(msg) }

func (l *Logger) Warn(msg string) { l.zlog.Warn().Msg(msg) }

func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

// ParseLogLevel maps a level name to a zerolog level, falling back to info.
func ParseLogLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
