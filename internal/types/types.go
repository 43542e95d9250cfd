package types

import (
	"fmt"
	"strings"
)

// Common system-wide constants
const (
	// Scan limits
	DefaultScanTimeoutMs = 10000 // 10s - bounded wait for one analyzer run
	// Rationale: Linters on a single file finish well under a second;
	// project-wide runs on cold caches can take several seconds.
	// A hung analyzer must not block a batch forever.

	DefaultMaxConcurrentScans = 4 // Concurrent analyzer processes in batch mode
	// Rationale: Each scan is a separate node process with its own
	// startup cost and memory footprint. Four keeps a laptop responsive.

	DefaultWatchDebounceMs = 300 // Debounce time for file change events

	// DefaultFilePattern matches JavaScript, TypeScript, JSX/TSX and Vue files.
	DefaultFilePattern = `.*?\.[jt]sx?$|.*?\.vue$`

	// DefaultIgnoreFile is the ignore file looked up at each project root.
	DefaultIgnoreFile = ".eslintignore"

	// DependencyDirPattern is always ignored regardless of the ignore file.
	DependencyDirPattern = "**/node_modules/**"
)

// OutputFormat selects the analyzer output dialect.
type OutputFormat string

const (
	FormatCompact OutputFormat = "compact"
	FormatJSON    OutputFormat = "json"
)

// OutputFormats lists every supported dialect in preference order.
var OutputFormats = []OutputFormat{FormatCompact, FormatJSON}

// ParseOutputFormat resolves a case-insensitive format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCompact, "":
		return FormatCompact, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

func (f OutputFormat) String() string {
	return string(f)
}
