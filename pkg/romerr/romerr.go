// Package romerr defines the failure classes of a cross-validation run.
//
// Every stage wraps its errors with one of the sentinels below so callers can
// classify a failure with errors.Is regardless of how deep it was produced:
//
//	if errors.Is(err, romerr.ErrBackend) {
//	    // a regression backend did not produce its prediction artifact
//	}
//
// An undefined relative error (reference value within tolerance of zero) is
// not an error. It is carried as NaN in the error report.
package romerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration reports an invalid fold fraction, a non-positive
	// simulation count or declared column counts that do not match the data.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrIO reports a required file that could not be opened, read or written.
	ErrIO = errors.New("io failure")

	// ErrBackend reports a regression backend that did not produce its
	// prediction artifact.
	ErrBackend = errors.New("backend failure")
)

// Configf returns an ErrInvalidConfiguration with a formatted detail message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

// IO wraps err as an ErrIO for the given operation and path.
func IO(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}

// Backendf returns an ErrBackend with a formatted detail message.
func Backendf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBackend, fmt.Sprintf(format, args...))
}

// Kind returns a short label for the failure class of err, suitable for
// metric labels. Unclassified errors report "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfiguration):
		return "configuration"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrBackend):
		return "backend"
	default:
		return "unknown"
	}
}
