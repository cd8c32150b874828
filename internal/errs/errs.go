// Package errs defines the error kinds shared across subsweep packages.
// Callers wrap a kind with fmt.Errorf("...: %w", kind) and test for it
// with the Is helpers.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks a request or configuration the engine refuses to run.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound marks a missing wordlist or other local resource.
	ErrNotFound = errors.New("resource not found")

	// ErrTransport marks a malformed message on an outer transport.
	ErrTransport = errors.New("malformed request")

	// ErrInternal marks an unexpected engine failure such as a recovered panic.
	ErrInternal = errors.New("internal error")
)

// InvalidConfig wraps a formatted message with ErrInvalidConfig.
func InvalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// NotFound wraps a formatted message with ErrNotFound.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// IsInvalidConfig reports whether err carries ErrInvalidConfig.
func IsInvalidConfig(err error) bool { return errors.Is(err, ErrInvalidConfig) }

// IsNotFound reports whether err carries ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransport reports whether err carries ErrTransport.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }
