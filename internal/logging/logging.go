// Package logging provides structured logging with slog for casetrace.
//
// Features:
//   - JSON and text output formats
//   - Log levels (debug, info, warn, error)
//   - Contextual logging with request IDs
//   - Sensitive data redaction by attribute key and value pattern
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Level represents a logging level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the output format for logs.
type Format int

const (
	// FormatText outputs human-readable text logs.
	FormatText Format = iota
	// FormatJSON outputs JSON-structured logs.
	FormatJSON
)

// Redacted replaces sensitive values.
const Redacted = "[REDACTED]"

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// Format is the output format (text or JSON).
	Format Format

	// Output is "stdout", "stderr" or "file".
	Output string

	// FilePath is the log file when Output is "file". Entries are appended.
	FilePath string

	// Writer overrides Output when set.
	Writer io.Writer

	// AddSource adds source file and line to log entries.
	AddSource bool

	// RedactPatterns are regular expressions; matching substrings of
	// string values are replaced with Redacted.
	RedactPatterns []string

	// Component is the name of the component using this logger.
	Component string
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:     LevelInfo,
		Format:    FormatText,
		Output:    "stderr",
		Component: "casetrace",
		RedactPatterns: []string{
			`(?i)bearer\s+[a-z0-9._\-]+`,
		},
	}
}

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
	config *Config
	file   *os.File
	mu     *sync.Mutex
}

// New creates a new Logger with the given configuration.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.RedactPatterns))
	for _, p := range cfg.RedactPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	l := &Logger{config: cfg, mu: &sync.Mutex{}}
	w, err := l.setupWriter()
	if err != nil {
		return nil, fmt.Errorf("setup writer: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			return redact(a, patterns)
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	if cfg.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("component", cfg.Component),
		})
	}

	l.Logger = slog.New(handler)
	return l, nil
}

// setupWriter resolves the output writer from config.
func (l *Logger) setupWriter() (io.Writer, error) {
	if l.config.Writer != nil {
		return l.config.Writer, nil
	}
	switch strings.ToLower(l.config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "file":
		if l.config.FilePath == "" {
			return nil, fmt.Errorf("file output requires a path")
		}
		if err := os.MkdirAll(filepath.Dir(l.config.FilePath), 0700); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(l.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		return f, nil
	default:
		return os.Stderr, nil
	}
}

// sensitiveKeys are matched against the underscore-, dash- or
// dot-separated words of an attribute key.
var sensitiveKeys = map[string]bool{
	"password": true, "secret": true, "token": true, "credential": true,
	"private": true, "auth": true, "authorization": true, "cookie": true,
	"apikey": true, "bearer": true, "key": true, "session": true,
}

// shouldRedact checks if an attribute key names sensitive data.
func shouldRedact(key string) bool {
	words := strings.FieldsFunc(strings.ToLower(key), func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for _, w := range words {
		if sensitiveKeys[w] {
			return true
		}
	}
	return false
}

func redact(a slog.Attr, patterns []*regexp.Regexp) slog.Attr {
	if shouldRedact(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	if a.Value.Kind() == slog.KindString && len(patterns) > 0 {
		s := a.Value.String()
		for _, re := range patterns {
			s = re.ReplaceAllString(s, Redacted)
		}
		a.Value = slog.StringValue(s)
	}
	return a
}

func (l *Logger) derive(sl *slog.Logger) *Logger {
	return &Logger{Logger: sl, config: l.config, file: l.file, mu: l.mu}
}

// WithRequestID returns a new logger with a request ID.
func (l *Logger) WithRequestID(id string) *Logger {
	return l.derive(l.Logger.With(slog.String("request_id", id)))
}

// WithComponent returns a new logger with a different component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.derive(l.Logger.With(slog.String("component", name)))
}

// WithContext returns a logger with context-derived attributes.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		return l.WithRequestID(reqID)
	}
	return l
}

// Slog returns the underlying *slog.Logger for packages that take one.
func (l *Logger) Slog() *slog.Logger {
	return l.Logger
}

// Close closes the log file, if any. Loggers derived from l share it.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// NewRequestID generates a new unique request ID.
func NewRequestID() string {
	return uuid.NewString()
}

// Context key types for request ID.
type contextKey int

const (
	requestIDKey contextKey = iota
)

// ContextWithRequestID returns a new context with the request ID.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ParseLevel parses a string into a log level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", s)
	}
}

// LevelString returns the string representation of a log level.
func LevelString(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}
