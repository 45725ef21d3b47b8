package docprops

import (
	"errors"
	"fmt"
)

// NotFoundError indicates that the document path does not exist or is not a
// regular file.
type NotFoundError struct {
	Path  string
	Cause error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document not found: %s", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(path string, cause error) *NotFoundError {
	return &NotFoundError{Path: path, Cause: cause}
}

// FormatError indicates that a file exists but is not a DOCX document.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported format for %s: %s", e.Path, e.Reason)
}

// NewFormatError creates a new FormatError.
func NewFormatError(path, reason string) *FormatError {
	return &FormatError{Path: path, Reason: reason}
}

// CorruptArchiveError indicates that a document could not be opened as a
// ZIP archive, or lacks the parts every DOCX carries.
type CorruptArchiveError struct {
	Path  string
	Cause error
}

func (e *CorruptArchiveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("corrupt document archive %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("corrupt document archive %s", e.Path)
}

func (e *CorruptArchiveError) Unwrap() error {
	return e.Cause
}

// NewCorruptArchiveError creates a new CorruptArchiveError.
func NewCorruptArchiveError(path string, cause error) *CorruptArchiveError {
	return &CorruptArchiveError{Path: path, Cause: cause}
}

// ValidationError indicates invalid caller input, detected before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IOFailureError indicates a failure while writing an updated document:
// temp file creation, archive rewriting, or the final rename.
type IOFailureError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *IOFailureError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Operation, e.Path, e.Cause)
}

func (e *IOFailureError) Unwrap() error {
	return e.Cause
}

// NewIOFailureError creates a new IOFailureError.
func NewIOFailureError(operation, path string, cause error) *IOFailureError {
	return &IOFailureError{Operation: operation, Path: path, Cause: cause}
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsFormatError checks if an error is a FormatError.
func IsFormatError(err error) bool {
	var e *FormatError
	return errors.As(err, &e)
}

// IsCorruptArchiveError checks if an error is a CorruptArchiveError.
func IsCorruptArchiveError(err error) bool {
	var e *CorruptArchiveError
	return errors.As(err, &e)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsIOFailureError checks if an error is an IOFailureError.
func IsIOFailureError(err error) bool {
	var e *IOFailureError
	return errors.As(err, &e)
}
