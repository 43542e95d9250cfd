package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/standardbeagle/lintwatch/internal/types"
)

const (
	// KDLFileName is the project and home configuration file.
	KDLFileName = ".lintwatch.kdl"
	// TOMLFileName is accepted as a project configuration file when no KDL file exists.
	TOMLFileName = ".lintwatch.toml"
)

type Config struct {
	Version  int      `toml:"version"`
	Project  Project  `toml:"project"`
	Lint     Lint     `toml:"lint"`
	Analyzer Analyzer `toml:"analyzer"`
	Scan     Scan     `toml:"scan"`
}

type Project struct {
	Root string `toml:"root"`
}

type Lint struct {
	Enabled      bool     `toml:"enabled"`
	FilePattern  string   `toml:"file_pattern"` // regex matched against a file's base name
	IgnoreFile   string   `toml:"ignore_file"`  // relative to the project root
	AlwaysIgnore []string `toml:"always_ignore"`

	IgnoreBuildOutput bool `toml:"ignore_build_output"` // skip tsconfig/vite/package.json output dirs
}

type Analyzer struct {
	Path               string   `toml:"path"` // empty means the platform default
	Format             string   `toml:"format"`
	UseCustomConfig    bool     `toml:"use_custom_config"`
	CustomConfigPath   string   `toml:"custom_config"`
	ProjectConfigFiles []string `toml:"project_config"`
	HomeConfigFile     string   `toml:"home_config"`
}

type Scan struct {
	TimeoutMs       int  `toml:"timeout_ms"`
	MaxConcurrent   int  `toml:"max_concurrent"`
	WatchMode       bool `toml:"watch"`
	WatchDebounceMs int  `toml:"watch_debounce_ms"`
}

// DefaultProjectConfigFiles are the analyzer config names looked up at a project root.
var DefaultProjectConfigFiles = []string{
	".eslintrc.js",
	".eslintrc.cjs",
	".eslintrc.json",
	".eslintrc.yml",
	".eslintrc.yaml",
	".eslintrc",
	"eslint.config.js",
}

// Default returns the built-in configuration rooted at root.
func Default(root string) *Config {
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Lint: Lint{
			Enabled:      true,
			FilePattern:  types.DefaultFilePattern,
			IgnoreFile:   types.DefaultIgnoreFile,
			AlwaysIgnore: []string{types.DependencyDirPattern},

			IgnoreBuildOutput: true,
		},
		Analyzer: Analyzer{
			Path:               "",
			Format:             string(types.FormatCompact),
			UseCustomConfig:    false,
			CustomConfigPath:   "~/.eslintrc.js",
			ProjectConfigFiles: append([]string(nil), DefaultProjectConfigFiles...),
			HomeConfigFile:     ".eslintrc.js",
		},
		Scan: Scan{
			TimeoutMs:       types.DefaultScanTimeoutMs,
			MaxConcurrent:   types.DefaultMaxConcurrentScans,
			WatchMode:       true,
			WatchDebounceMs: types.DefaultWatchDebounceMs,
		},
	}
}

// Load reads configuration for the current directory. A non-empty path names
// an explicit project configuration file (.kdl or .toml) that replaces the
// project lookup.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadWithRoot("", "")
	}
	cfg, err := loadFile(path, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if base := loadHome(); base != nil {
		cfg = mergeConfigs(base, cfg)
	}
	cfg.EnrichIgnoresWithBuildOutput()
	return cfg, nil
}

// LoadWithRoot merges ~/.lintwatch.kdl (base) with the project configuration
// found in rootDir (.lintwatch.kdl, else .lintwatch.toml). The path argument
// is kept for call-site symmetry with Load and overrides the lookup when set.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	if path != "" {
		cfg, err := Load(path)
		if err != nil {
			return nil, err
		}
		if rootDir != "" {
			cfg.Project.Root = absOr(rootDir)
		}
		return cfg, nil
	}

	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	baseConfig := loadHome()

	projectConfig, err := LoadKDL(searchDir)
	if err != nil {
		return nil, err
	}
	if projectConfig == nil {
		if projectConfig, err = LoadTOML(searchDir); err != nil {
			return nil, err
		}
	}

	var cfg *Config
	switch {
	case baseConfig != nil && projectConfig != nil:
		cfg = mergeConfigs(baseConfig, projectConfig)
	case projectConfig != nil:
		cfg = projectConfig
	case baseConfig != nil:
		// Home config applies, but the project root is the one asked for
		baseConfig.Project.Root = absOr(searchDir)
		cfg = baseConfig
	default:
		cfg = Default(searchDir)
	}

	cfg.EnrichIgnoresWithBuildOutput()
	return cfg, nil
}

func loadHome() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	cfg, err := LoadKDL(homeDir)
	if err != nil {
		// Broken home config is skipped, never fatal
		log.Printf("WARNING: ignoring %s: %v", filepath.Join(homeDir, KDLFileName), err)
		return nil
	}
	return cfg
}

func loadFile(path, root string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		cfg, err = parseTOML(content, root)
	} else {
		cfg, err = parseKDL(string(content), root)
	}
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, root)
	return cfg, nil
}

// mergeConfigs lets the project config win, but preserves the base
// always_ignore patterns.
func mergeConfigs(base, project *Config) *Config {
	merged := *project
	merged.Lint.AlwaysIgnore = DeduplicatePatterns(append(append([]string(nil), base.Lint.AlwaysIgnore...), project.Lint.AlwaysIgnore...))
	if len(project.Analyzer.ProjectConfigFiles) == 0 && len(base.Analyzer.ProjectConfigFiles) > 0 {
		merged.Analyzer.ProjectConfigFiles = base.Analyzer.ProjectConfigFiles
	}
	return &merged
}

// DeduplicatePatterns removes repeated patterns, keeping first occurrences in order.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Timeout is the per-scan bounded wait.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Scan.TimeoutMs) * time.Millisecond
}

// WatchDebounce is the file-event debounce interval.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Scan.WatchDebounceMs) * time.Millisecond
}

// OutputFormat returns the configured analyzer dialect, compact when unset or unknown.
func (c *Config) OutputFormat() types.OutputFormat {
	f, err := types.ParseOutputFormat(c.Analyzer.Format)
	if err != nil {
		return types.FormatCompact
	}
	return f
}

// Executable returns the analyzer executable, falling back to the platform default.
func (c *Config) Executable() string {
	if p := strings.TrimSpace(c.Analyzer.Path); p != "" {
		return ExpandHome(p)
	}
	return DefaultExecutable(runtime.GOOS)
}

// IgnoreFilePath returns the absolute path of the ignore file for root.
func (c *Config) IgnoreFilePath(root string) string {
	name := c.Lint.IgnoreFile
	if name == "" {
		name = types.DefaultIgnoreFile
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(root, name)
}

// DefaultExecutable is the analyzer's command name on goos.
func DefaultExecutable(goos string) string {
	if goos == "windows" {
		return "eslint.cmd"
	}
	return "eslint"
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func resolveRoot(cfg *Config, configDir string) {
	if cfg.Project.Root != "" && cfg.Project.Root != "." {
		if !filepath.IsAbs(cfg.Project.Root) {
			cfg.Project.Root = filepath.Join(configDir, cfg.Project.Root)
		}
		cfg.Project.Root = filepath.Clean(cfg.Project.Root)
		return
	}
	cfg.Project.Root = absOr(configDir)
}

func absOr(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
