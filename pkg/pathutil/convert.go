// Package pathutil converts between absolute and relative paths.
//
// Scans, attachments and problem lists key files by absolute path. User-facing
// output shows paths relative to the project root where possible.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/lintwatch/internal/types"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/app/src/main.js", "/home/user/app") → "src/main.js"
//   - ToRelative("/other/location/file.js", "/home/user/app") → "/other/location/file.js" (outside root)
//   - ToRelative("src/main.js", "/home/user/app") → "src/main.js" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}

	// Outside the root the absolute path reads better than a ../ chain
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}
	return relPath
}

// ToRelativeProblems converts problem file paths from absolute to relative.
// Creates a new slice without modifying the original problems.
func ToRelativeProblems(problems []types.Problem, rootDir string) []types.Problem {
	if len(problems) == 0 {
		return problems
	}

	converted := make([]types.Problem, len(problems))
	copy(converted, problems)
	for i := range converted {
		converted[i].File = ToRelative(converted[i].File, rootDir)
	}
	return converted
}
