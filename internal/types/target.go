package types

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TargetKind distinguishes file scans from directory (project) scans.
type TargetKind uint8

const (
	TargetFile TargetKind = iota
	TargetDirectory
)

func (k TargetKind) String() string {
	if k == TargetDirectory {
		return "directory"
	}
	return "file"
}

// ScanTarget is exactly one file or one directory. A directory target is
// scanned recursively by the analyzer; a file target covers one file.
type ScanTarget struct {
	Path string // absolute, cleaned
	Kind TargetKind
}

// FileTarget returns a target for a single file.
func FileTarget(path string) ScanTarget {
	return ScanTarget{Path: absClean(path), Kind: TargetFile}
}

// DirectoryTarget returns a target for a project tree.
func DirectoryTarget(path string) ScanTarget {
	return ScanTarget{Path: absClean(path), Kind: TargetDirectory}
}

// TargetFor stats path and returns the matching target kind.
func TargetFor(path string) (ScanTarget, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ScanTarget{}, err
	}
	if info.IsDir() {
		return DirectoryTarget(path), nil
	}
	return FileTarget(path), nil
}

// IsDir reports whether the target is a directory target.
func (t ScanTarget) IsDir() bool {
	return t.Kind == TargetDirectory
}

// Key identifies the target for in-flight bookkeeping.
func (t ScanTarget) Key() string {
	return t.Kind.String() + ":" + t.Path
}

// Contains reports whether path is the target itself or, for directory
// targets, lies underneath it.
func (t ScanTarget) Contains(path string) bool {
	path = filepath.Clean(path)
	if path == t.Path {
		return true
	}
	if !t.IsDir() {
		return false
	}
	rel, err := filepath.Rel(t.Path, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (t ScanTarget) String() string {
	return fmt.Sprintf("%s %s", t.Kind, t.Path)
}

func absClean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
