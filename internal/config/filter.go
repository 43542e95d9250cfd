package config

import (
	"log"
	"path/filepath"
	"regexp"
)

// FileFilter is the eligibility allow-list: a regular expression matched
// against a file's base name. An invalid expression makes no file eligible.
type FileFilter struct {
	pattern string
	re      *regexp.Regexp
	err     error
}

// NewFileFilter compiles pattern. Compile errors are logged and kept on the filter.
func NewFileFilter(pattern string) *FileFilter {
	f := &FileFilter{pattern: pattern}
	re, err := regexp.Compile(pattern)
	if err != nil {
		log.Printf("WARNING: invalid lint.file_pattern %q, no files will be scanned: %v", pattern, err)
		f.err = err
		return f
	}
	f.re = re
	return f
}

// Eligible reports whether path's base name matches the allow-list.
func (f *FileFilter) Eligible(path string) bool {
	if f == nil || f.re == nil {
		return false
	}
	return f.re.MatchString(filepath.Base(path))
}

func (f *FileFilter) Pattern() string { return f.pattern }

func (f *FileFilter) Err() error { return f.err }
