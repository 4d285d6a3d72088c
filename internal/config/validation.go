package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Is lets errors.Is(err, ErrInvalidConfig) match any non-empty set.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig && len(e) > 0
}

// warningFields are reported but never fail validation.
var warningFields = []string{
	"interpret.api_key",
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	for _, f := range warningFields {
		if e.Field == f {
			return true
		}
	}
	return false
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// ValidateConfig checks every section and returns all issues found,
// warnings included.
func ValidateConfig(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateEngine(&c.Engine)...)
	errs = append(errs, validateConsensus(&c.Consensus, &c.Interpret)...)
	errs = append(errs, validateInterpret(&c.Interpret)...)
	errs = append(errs, validateArchive(&c.Archive)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	return errs
}

func validateEngine(e *EngineConfig) ValidationErrors {
	var errs ValidationErrors

	if e.Workers < 0 {
		errs = append(errs, ValidationError{
			Field:   "engine.workers",
			Message: "workers cannot be negative",
		})
	}
	for i, name := range e.Overlays {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("engine.overlays[%d]", i),
				Message: "overlay name cannot be empty",
			})
		}
	}

	return errs
}

func validateConsensus(c *ConsensusConfig, i *InterpretConfig) ValidationErrors {
	var errs ValidationErrors

	if c.TimeoutSec < 1 || c.TimeoutSec > 600 {
		errs = append(errs, *RangeError("consensus.timeout_sec", 1, 600))
	}
	if c.PrefixLength < 1 {
		errs = append(errs, ValidationError{
			Field:   "consensus.prefix_length",
			Message: "prefix length must be at least 1",
		})
	}
	if c.Enabled && i.Endpoint == "" {
		errs = append(errs, ValidationError{
			Field:   "interpret.endpoint",
			Message: "endpoint is required when consensus is enabled",
		})
	}

	return errs
}

func validateInterpret(i *InterpretConfig) ValidationErrors {
	var errs ValidationErrors

	if i.Endpoint != "" {
		if !isValidURL(i.Endpoint) {
			errs = append(errs, ValidationError{
				Field:   "interpret.endpoint",
				Message: fmt.Sprintf("invalid URL: %s", i.Endpoint),
			})
		}
		if i.APIKey == "" {
			errs = append(errs, ValidationError{
				Field:   "interpret.api_key",
				Message: "no API key set; requests are sent unauthenticated",
			})
		}
	}
	if i.TimeoutSec < 1 || i.TimeoutSec > 600 {
		errs = append(errs, *RangeError("interpret.timeout_sec", 1, 600))
	}
	if i.MaxRetries < 0 || i.MaxRetries > 10 {
		errs = append(errs, *RangeError("interpret.max_retries", 0, 10))
	}
	if i.BackoffMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "interpret.backoff_ms",
			Message: "backoff cannot be negative",
		})
	}
	if i.RatePerSec > 0 && i.Burst < 1 {
		errs = append(errs, ValidationError{
			Field:   "interpret.burst",
			Message: "burst must be at least 1 when rate limiting is on",
		})
	}

	return errs
}

func validateArchive(a *ArchiveConfig) ValidationErrors {
	var errs ValidationErrors

	if !a.Enabled {
		return errs
	}
	if a.Path == "" {
		errs = append(errs, *RequiredFieldError("archive.path"))
	}
	if a.Secret == "" {
		errs = append(errs, ValidationError{
			Field:   "archive.secret",
			Message: "secret is required when the archive is enabled (set CASETRACE_ARCHIVE_SECRET)",
		})
	} else if len(a.Secret) < 16 {
		errs = append(errs, ValidationError{
			Field:   "archive.secret",
			Message: "secret must be at least 16 bytes",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
		// Valid levels
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file)", l.Output),
		})
	}

	return errs
}

func isValidURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
