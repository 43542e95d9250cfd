// Package project resolves which project a file belongs to.
package project

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resolver maps a file to the root of the project that owns it.
type Resolver interface {
	ProjectRoot(path string) (root string, ok bool)
}

// DefaultMarkers identify a project root, checked in order at each level.
var DefaultMarkers = []string{
	"package.json",
	".lintwatch.kdl",
	".lintwatch.toml",
	".eslintignore",
	".git",
}

// MarkerResolver walks up from a file's directory until it finds a directory
// holding one of the marker files.
type MarkerResolver struct {
	markers []string
}

// NewMarkerResolver uses DefaultMarkers when no markers are given.
func NewMarkerResolver(markers ...string) *MarkerResolver {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	return &MarkerResolver{markers: markers}
}

func (r *MarkerResolver) ProjectRoot(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	dir := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		for _, m := range r.markers {
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// StaticResolver owns a fixed set of roots; the deepest root containing a
// path wins.
type StaticResolver struct {
	roots []string
}

func NewStaticResolver(roots ...string) *StaticResolver {
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			clean = append(clean, abs)
		}
	}
	// Longest first so nested projects win
	sort.Slice(clean, func(i, j int) bool { return len(clean[i]) > len(clean[j]) })
	return &StaticResolver{roots: clean}
}

func (r *StaticResolver) ProjectRoot(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	for _, root := range r.roots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}

// Chain tries each resolver in order.
type Chain []Resolver

func (c Chain) ProjectRoot(path string) (string, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if root, ok := r.ProjectRoot(path); ok {
			return root, true
		}
	}
	return "", false
}

// FindFile returns the first of names that exists as a regular file in dir.
func FindFile(dir string, names []string) (string, bool) {
	for _, name := range names {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}
