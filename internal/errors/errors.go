package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"
)

// Error types for the lint orchestration layer
type ErrorType string

const (
	// Analyzer process errors
	ErrorTypeLaunch ErrorType = "launch"
	ErrorTypeScan   ErrorType = "scan"

	// Output errors
	ErrorTypeParse ErrorType = "parse"

	// File errors
	ErrorTypeIgnoreFile ErrorType = "ignore_file"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

var (
	// ErrScanTimeout is the cancellation cause of a scan that exceeded its bounded wait.
	ErrScanTimeout = errors.New("scan timed out")

	// ErrScanSuperseded is the cancellation cause of a scan replaced by a newer
	// scan of the same target.
	ErrScanSuperseded = errors.New("scan superseded by a newer scan of the same target")

	// ErrScanCanceled is the cancellation cause of an explicitly cancelled scan.
	ErrScanCanceled = errors.New("scan canceled")
)

// LaunchError reports that the analyzer executable could not be started.
// It is the only error surfaced to the user.
type LaunchError struct {
	Type       ErrorType
	Executable string
	Dir        string
	Underlying error
	Timestamp  time.Time
}

// NewLaunchError creates a launch error for the given executable
func NewLaunchError(executable, dir string, err error) *LaunchError {
	return &LaunchError{
		Type:       ErrorTypeLaunch,
		Executable: executable,
		Dir:        dir,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch analyzer %q: %v", e.Executable, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *LaunchError) Unwrap() error {
	return e.Underlying
}

// Hint tells the user where to fix the problem.
func (e *LaunchError) Hint() string {
	if e.NotFound() {
		return "the analyzer executable was not found; set analyzer.path in .lintwatch.kdl"
	}
	return "the analyzer could not be started; check analyzer.path in .lintwatch.kdl"
}

// NotFound reports whether the executable does not exist.
func (e *LaunchError) NotFound() bool {
	return errors.Is(e.Underlying, exec.ErrNotFound) || errors.Is(e.Underlying, fs.ErrNotExist)
}

// ParseError represents one output record the parser could not decode.
type ParseError struct {
	Type       ErrorType
	Format     string
	Line       string
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error
func NewParseError(format, line string, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParse,
		Format:     format,
		Line:       line,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s output parse error (record %q): %v", e.Format, truncate(e.Line, 120), e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// IgnoreFileError represents an unreadable or malformed ignore file.
type IgnoreFileError struct {
	Type       ErrorType
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewIgnoreFileError creates a new ignore file error
func NewIgnoreFileError(path string, err error) *IgnoreFileError {
	return &IgnoreFileError{
		Type:       ErrorTypeIgnoreFile,
		Path:       path,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *IgnoreFileError) Error() string {
	return fmt.Sprintf("ignore file %s unusable, falling back to built-in rules: %v", e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *IgnoreFileError) Unwrap() error {
	return e.Underlying
}

// ScanError wraps a scan-level failure with its target.
type ScanError struct {
	Type       ErrorType
	Target     string
	Underlying error
	Timestamp  time.Time
}

// NewScanError creates a new scan error
func NewScanError(target string, err error) *ScanError {
	return &ScanError{
		Type:       ErrorTypeScan,
		Target:     target,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ScanError) Error() string {
	return fmt.Sprintf("scan of %s failed: %v", e.Target, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ScanError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected.
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// IsLaunchFailure reports whether err carries a LaunchError.
func IsLaunchFailure(err error) bool {
	var le *LaunchError
	return errors.As(err, &le)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
