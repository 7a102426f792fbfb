// Package errors provides the typed errors reported by the qmdptx driver.
// The conversion core never fails; everything here describes I/O, manifest
// and packaging problems around it. Describe turns any of them into the
// single line the command prints before exiting with status 1.
package errors

import (
	"errors"
	"fmt"
)

// Base errors the typed errors unwrap to when they carry no cause.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported")
)

// diagnostic is implemented by every error type in this package.
type diagnostic interface {
	error
	Diagnostic() string
}

// Describe renders err as a one-line diagnostic. The outermost typed error
// in the chain decides the wording; anything else is reported as
// unexpected.
func Describe(err error) string {
	var d diagnostic
	if errors.As(err, &d) {
		return d.Diagnostic()
	}
	return "Unexpected error: " + err.Error()
}

// NotFoundError represents a missing resource such as a source chapter.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "source file", "chapter", "bundle entry")
	ID       string // Identifier or path of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// Diagnostic names missing chapter sources explicitly; other resources use
// the plain message.
func (e *NotFoundError) Diagnostic() string {
	if e.Resource == "source file" {
		return "Error: Source file not found: " + e.ID
	}
	return "Error: " + e.Error()
}

// ValidationError reports a manifest, path or input that was rejected.
type ValidationError struct {
	Field   string // Field name that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

func (e *ValidationError) Diagnostic() string { return "Error: " + e.Error() }

// IOError reports a failed filesystem operation on a source, output or
// archive.
type IOError struct {
	Operation string // "read", "write", "open", "create directory"
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Diagnostic reports reads and writes as "Error reading PATH: CAUSE" and
// "Error writing PATH: CAUSE".
func (e *IOError) Diagnostic() string {
	var cause error = e
	if e.Err != nil {
		cause = e.Err
	}
	switch e.Operation {
	case "read":
		return fmt.Sprintf("Error reading %s: %v", e.Path, cause)
	case "write":
		return fmt.Sprintf("Error writing %s: %v", e.Path, cause)
	}
	return "Error: " + e.Error()
}

// ParseError reports malformed JSON, YAML front matter or attribute blocks.
type ParseError struct {
	Format  string // Format being parsed (e.g., "manifest", "front matter", "attributes")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

func (e *ParseError) Diagnostic() string { return "Error: " + e.Error() }

// UnsupportedError reports a bundle extension or compression qmdptx cannot
// handle.
type UnsupportedError struct {
	Feature string
	Reason  string
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

func (e *UnsupportedError) Diagnostic() string { return "Error: " + e.Error() }

func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap prefixes err with message, keeping it in the chain. It returns nil
// for a nil err.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// As is errors.As, so callers importing this package need not alias the
// standard one.
func As(err error, target any) bool {
	return errors.As(err, target)
}
