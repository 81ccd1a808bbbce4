package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a levelled logger for decision-core activity
type Logger struct {
	zl     zerolog.Logger
	closer io.Closer
	mu     *sync.Mutex
}

// Config selects level, encoding and destination
type Config struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

// New creates a logger from configuration
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var (
		output io.Writer
		closer io.Closer
	)
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closer = file
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.DateTime}
	}

	l := NewWithWriter(output, level)
	l.closer = closer
	return l, nil
}

// NewWithWriter builds a JSON logger on an arbitrary writer
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{
		zl: zerolog.New(w).Level(level).With().Timestamp().Logger(),
		mu: &sync.Mutex{},
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), mu: &sync.Mutex{}}
}

// With returns a child logger tagged with a component name
func (l *Logger) With(component string) *Logger {
	return &Logger{
		zl:     l.zl.With().Str("component", component).Logger(),
		closer: l.closer,
		mu:     l.mu,
	}
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// Trade logs a position lifecycle event
func (l *Logger) Trade(format string, args ...interface{}) {
	l.zl.Info().Str("kind", "trade").Msgf(format, args...)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.zl.Error().Err(err).Msg(context)
}

// LogWarning logs warning with context
func (l *Logger) LogWarning(context string, message string, args ...interface{}) {
	l.zl.Warn().Str("context", context).Msgf(message, args...)
}

// Close closes the underlying file, if any
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
