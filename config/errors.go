package config

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories.
const (
	CategoryMissing = "missing"
	CategoryInvalid = "invalid"
	CategoryFile    = "file"
	CategorySource  = "source"
)

// ConfigError is a configuration error with actionable guidance.
// Messages are lowercase following Go conventions.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Category string   // "missing", "invalid", "file" or "source"
	Field    string   // config key, e.g. "tls.certpath"
	Message  string   // what is wrong
	Action   string   // how to fix it
	Details  []string // further problems found in the same pass
	cause    error
}

func (e *ConfigError) Error() string {
	var parts []string
	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	if len(e.Details) > 0 {
		parts = append(parts, "("+strings.Join(e.Details, "; ")+")")
	}
	return strings.Join(parts, " ")
}

func (e *ConfigError) Unwrap() error {
	return e.cause
}

// EnvVar returns the environment variable that sets key.
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// NewMissingFieldError creates an error for a required missing configuration field.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to the config file", EnvVar(field), field),
	}
}

// NewInvalidFieldError creates an error for an invalid configuration value.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{
		Category: CategoryInvalid,
		Field:    field,
		Message:  message,
	}
	if len(validOptions) > 0 {
		err.Action = fmt.Sprintf("must be one of: %s", strings.Join(validOptions, ", "))
	}
	return err
}

// NewFileError reports a credential file that cannot be used.
func NewFileError(field, path, message string) *ConfigError {
	return &ConfigError{
		Category: CategoryFile,
		Field:    field,
		Message:  fmt.Sprintf("%s: %s", message, path),
		Action:   "check the path and file permissions",
	}
}

// NewSourceError wraps a failure to read a configuration source.
func NewSourceError(source string, cause error) *ConfigError {
	return &ConfigError{
		Category: CategorySource,
		Field:    source,
		Message:  fmt.Sprintf("could not be loaded: %v", cause),
		cause:    cause,
	}
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
