// Package manifest contains pure functions for parsing and validating
// devstack topology manifests (compose-style YAML).
package manifest

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput = errors.New("manifest is empty")

	// YAML parsing errors
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// Manifest structure errors
	ErrNoServices = errors.New("manifest must define at least one service")

	// Service validation errors
	ErrServiceNoImage     = errors.New("service must have image, build or extends")
	ErrServiceInvalidPort = errors.New("invalid port configuration")
	ErrCircularDependency = errors.New("circular dependency detected")

	// Extends resolution errors
	ErrExtendsUnknownService = errors.New("extends references unknown service")
	ErrExtendsCycle          = errors.New("extends chain forms a cycle")
	ErrExtendsFileNotFound   = errors.New("extends file not found")

	// Topology validation errors
	ErrDuplicateContainerName = errors.New("duplicate container name")
	ErrHostPortConflict       = errors.New("conflicting host port binding")
	ErrMissingEnv             = errors.New("required environment variable missing")
	ErrInvalidEnvKey          = errors.New("invalid environment variable key")
	ErrUnknownVolume          = errors.New("service references undeclared volume")
	ErrUnknownDependency      = errors.New("service depends on unknown service")

	// Unsupported feature errors
	ErrUnsupportedFeature = errors.New("unsupported manifest feature")
)

// ParseError wraps errors with context about where parsing or validation failed.
type ParseError struct {
	Field   string // e.g., "services.dev-db.ports[0]"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
