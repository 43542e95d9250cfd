package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Severity is the analyzer's rating of a diagnostic.
// The ordinal values match the analyzer's JSON dialect (0 off, 1 warn, 2 error).
type Severity int

const (
	SeverityOff     Severity = 0
	SeverityWarning Severity = 1
	SeverityError   Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityOff:
		return "OFF"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Reportable reports whether diagnostics of this severity reach a sink.
func (s Severity) Reportable() bool {
	return s == SeverityWarning || s == SeverityError
}

// ParseSeverity maps a compact-dialect type name (case-insensitive) to a Severity.
func ParseSeverity(name string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ERROR":
		return SeverityError, true
	case "WARNING", "WARN":
		return SeverityWarning, true
	default:
		return SeverityOff, false
	}
}

// SeverityFromOrdinal maps a JSON-dialect severity to a Severity.
func SeverityFromOrdinal(n int) (Severity, bool) {
	switch Severity(n) {
	case SeverityOff, SeverityWarning, SeverityError:
		return Severity(n), true
	default:
		return SeverityOff, false
	}
}

// Diagnostic is one issue reported by the analyzer.
// Lines and columns are 1-based; EndCol equals StartCol for point diagnostics.
// Diagnostics are values: once built they are never mutated.
type Diagnostic struct {
	File     string
	Line     int
	StartCol int
	EndCol   int
	Severity Severity
	Message  string
}

// NewDiagnostic builds a Diagnostic and normalizes its position so that
// Line >= 1, StartCol >= 1 and EndCol >= StartCol.
func NewDiagnostic(file string, line, startCol, endCol int, sev Severity, message string) Diagnostic {
	if line < 1 {
		line = 1
	}
	if startCol < 1 {
		startCol = 1
	}
	if endCol < startCol {
		endCol = startCol
	}
	return Diagnostic{
		File:     file,
		Line:     line,
		StartCol: startCol,
		EndCol:   endCol,
		Severity: sev,
		Message:  strings.TrimSpace(message),
	}
}

// Validate checks the positional invariants.
func (d Diagnostic) Validate() error {
	if d.Line < 1 {
		return fmt.Errorf("line must be >= 1, got %d", d.Line)
	}
	if d.StartCol < 1 {
		return fmt.Errorf("start column must be >= 1, got %d", d.StartCol)
	}
	if d.EndCol < d.StartCol {
		return fmt.Errorf("end column %d before start column %d", d.EndCol, d.StartCol)
	}
	return nil
}

// IsPoint reports whether the diagnostic covers a single position.
func (d Diagnostic) IsPoint() bool {
	return d.EndCol == d.StartCol
}

// InFile reports whether the diagnostic belongs to path.
func (d Diagnostic) InFile(path string) bool {
	return filepath.Clean(d.File) == filepath.Clean(path)
}

// String renders the diagnostic in the analyzer's compact dialect.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: line %d, col %d, %s - %s", d.File, d.Line, d.StartCol, d.Severity, d.Message)
}
