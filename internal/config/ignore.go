package config

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/lintwatch/internal/debug"
	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
	"github.com/standardbeagle/lintwatch/internal/types"
)

// IgnorePattern is one parsed line of an ignore file.
type IgnorePattern struct {
	Pattern   string // as written, without modifiers
	Negate    bool
	Directory bool // written with a trailing "/"
	Anchored  bool // leading "/" or an inner "/" pins the pattern to the root

	self  string // matches the path itself; directories only when Directory
	under string // matches everything beneath
}

// IgnoreRuleSet is the compiled, ordered set of ignore patterns for one root.
// Built-in patterns are always applied after the file's patterns and cannot
// be negated.
type IgnoreRuleSet struct {
	root     string
	source   string
	patterns []IgnorePattern
	builtin  []string
	err      error
}

// LoadIgnore reads the default ignore file at root with the built-in
// dependency-directory rule.
func LoadIgnore(root string) *IgnoreRuleSet {
	return LoadIgnoreFile(root, filepath.Join(root, types.DefaultIgnoreFile), nil)
}

// LoadIgnoreFile reads ignorePath and compiles it against root. extra are
// additional always-applied patterns (already in doublestar form). Any read or
// compile failure degrades to the built-in rules and is logged; it never
// reaches the caller.
func LoadIgnoreFile(root, ignorePath string, extra []string) *IgnoreRuleSet {
	rs := BuiltinRuleSet(root, extra)
	rs.source = ignorePath

	file, err := os.Open(ignorePath)
	if os.IsNotExist(err) {
		return rs
	}
	if err != nil {
		rs.fail(err)
		return rs
	}
	defer file.Close()

	var patterns []IgnorePattern
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := ParseIgnorePattern(line)
		if err != nil {
			rs.fail(fmt.Errorf("line %d: %w", lineNo, err))
			return rs
		}
		patterns = append(patterns, p)
	}
	if err := scanner.Err(); err != nil {
		rs.fail(err)
		return rs
	}

	rs.patterns = patterns
	debug.LogConfig("loaded %d ignore patterns from %s\n", len(patterns), ignorePath)
	return rs
}

// BuiltinRuleSet returns a rule set holding only the always-applied patterns.
func BuiltinRuleSet(root string, extra []string) *IgnoreRuleSet {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	builtin := DeduplicatePatterns(append([]string{types.DependencyDirPattern}, extra...))
	globs := make([]string, 0, len(builtin)*2)
	for _, p := range builtin {
		p = strings.TrimPrefix(filepath.ToSlash(p), "/")
		if !doublestar.ValidatePattern(p) {
			log.Printf("WARNING: skipping invalid always_ignore pattern %q", p)
			continue
		}
		globs = append(globs, p)
		// "dir/**" also covers the directory itself
		if base := strings.TrimSuffix(p, "/**"); base != p && base != "" {
			globs = append(globs, base)
		}
	}
	return &IgnoreRuleSet{root: root, builtin: globs}
}

// ParseIgnorePattern parses one ignore-file line into a compiled pattern.
func ParseIgnorePattern(line string) (IgnorePattern, error) {
	p := IgnorePattern{}
	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.Anchored = true
		line = strings.TrimLeft(line, "/")
	}
	if strings.Contains(line, "/") {
		p.Anchored = true
	}
	if line == "" {
		return p, fmt.Errorf("empty pattern")
	}
	p.Pattern = line

	base := line
	if !p.Anchored && !strings.HasPrefix(base, "**/") {
		base = "**/" + base
	}
	p.self, p.under = base, base+"/**"
	for _, g := range []string{p.self, p.under} {
		if !doublestar.ValidatePattern(g) {
			return p, fmt.Errorf("invalid pattern %q", line)
		}
	}
	return p, nil
}

func (rs *IgnoreRuleSet) fail(err error) {
	rs.err = lwerrors.NewIgnoreFileError(rs.source, err)
	rs.patterns = nil
	log.Printf("WARNING: %v", rs.err)
}

// Root is the directory the rule set is scoped to.
func (rs *IgnoreRuleSet) Root() string { return rs.root }

// Err is the ignore file failure that caused the fallback, if any.
func (rs *IgnoreRuleSet) Err() error { return rs.err }

// Patterns returns the file patterns as written (negations prefixed with "!").
func (rs *IgnoreRuleSet) Patterns() []string {
	out := make([]string, 0, len(rs.patterns))
	for _, p := range rs.patterns {
		s := p.Pattern
		if p.Directory {
			s += "/"
		}
		if p.Negate {
			s = "!" + s
		}
		out = append(out, s)
	}
	return out
}

// IsIgnored relativizes path against the root and reports whether the
// built-in rules or the last matching file pattern exclude it. Paths outside
// the root are only checked against the built-in rules.
func (rs *IgnoreRuleSet) IsIgnored(path string) bool {
	if rs == nil {
		return false
	}
	rel, inside := rs.relative(path)
	if rel == "" {
		return false
	}

	for _, g := range rs.builtin {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	if !inside {
		return false
	}

	// Stat at most once, and only when a directory pattern names path itself
	var statted, dir bool
	isDir := func() bool {
		if !statted {
			statted = true
			info, err := os.Stat(filepath.Join(rs.root, filepath.FromSlash(rel)))
			dir = err == nil && info.IsDir()
		}
		return dir
	}

	ignored := false
	for _, p := range rs.patterns {
		if p.matches(rel, isDir) {
			ignored = !p.Negate
		}
	}
	return ignored
}

func (p IgnorePattern) matches(rel string, isDir func() bool) bool {
	if ok, _ := doublestar.Match(p.under, rel); ok {
		return true
	}
	if ok, _ := doublestar.Match(p.self, rel); ok {
		return !p.Directory || isDir()
	}
	return false
}

func (rs *IgnoreRuleSet) relative(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(rs.root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(rs.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return strings.TrimPrefix(filepath.ToSlash(path), "/"), false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}

// IgnoreCache holds one rule set per root and recomputes it whenever the
// ignore file's modification time or existence changes.
type IgnoreCache struct {
	cfg *Config

	mu      sync.Mutex
	entries map[string]ignoreEntry
}

type ignoreEntry struct {
	rules   *IgnoreRuleSet
	modTime time.Time
	exists  bool
}

// NewIgnoreCache creates a cache using cfg's ignore file name and always_ignore patterns.
func NewIgnoreCache(cfg *Config) *IgnoreCache {
	return &IgnoreCache{cfg: cfg, entries: make(map[string]ignoreEntry)}
}

// Get returns the current rule set for root.
func (c *IgnoreCache) Get(root string) *IgnoreRuleSet {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	ignorePath := c.cfg.IgnoreFilePath(root)

	var modTime time.Time
	info, err := os.Stat(ignorePath)
	exists := err == nil
	if exists {
		modTime = info.ModTime()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[root]; ok && e.exists == exists && e.modTime.Equal(modTime) {
		return e.rules
	}

	rules := LoadIgnoreFile(root, ignorePath, c.cfg.Lint.AlwaysIgnore)
	c.entries[root] = ignoreEntry{rules: rules, modTime: modTime, exists: exists}
	return rules
}

// Invalidate drops the cached rule set for root.
func (c *IgnoreCache) Invalidate(root string) {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	c.mu.Lock()
	delete(c.entries, root)
	c.mu.Unlock()
}
