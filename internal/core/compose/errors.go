// Package compose contains pure functions for reading compose documents.
// This is part of the Functional Core - all functions are pure with no I/O.
package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input errors
	ErrEmptyInput  = errors.New("compose document is empty")
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// Document structure errors
	ErrInvalidDocument = errors.New("invalid compose document")
	ErrNoServices      = errors.New("compose document must define at least one service")
	ErrInvalidService  = errors.New("invalid service definition")
	ErrInvalidMerge    = errors.New("values cannot be merged")
	ErrExtendsCycle    = errors.New("circular extends")

	// Project errors
	ErrInvalidProjectName = errors.New("invalid project name")

	// Substitution errors
	ErrMissingVariable = errors.New("required variable is unset")

	// Field errors
	ErrInvalidPort        = errors.New("invalid port configuration")
	ErrInvalidExpose      = errors.New("invalid expose configuration")
	ErrInvalidHealthcheck = errors.New("invalid healthcheck configuration")
	ErrInvalidCommand     = errors.New("invalid command")
)

// ConfigError is a user-facing configuration error. Field is the dotted
// path of the offending node in the document.
type ConfigError struct {
	Field   string // e.g., "services.web.ports[0]"
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string, err error) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// fieldPath joins a parent path and a child key.
func fieldPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
