// Package testhelpers provides shared utilities for testing lintwatch
package testhelpers

import (
	"github.com/standardbeagle/lintwatch/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configs with safe defaults
// Usage:
//
//	cfg := testhelpers.NewTestConfigBuilder(projectPath).
//		WithFormat("json").
//		WithAlwaysIgnore("**/generated/**").
//		Build()
type TestConfigBuilder struct {
	cfg *config.Config
}

// NewTestConfigBuilder creates a config builder with safe defaults for a project path.
// The home config lookup is disabled so a developer's ~/.eslintrc.js never leaks
// into a test's command line.
func NewTestConfigBuilder(projectRoot string) *TestConfigBuilder {
	cfg := config.Default(projectRoot)
	cfg.Analyzer.Path = "eslint"
	cfg.Analyzer.HomeConfigFile = ""
	cfg.Lint.IgnoreBuildOutput = false
	cfg.Scan.TimeoutMs = 5000
	cfg.Scan.MaxConcurrent = 4
	cfg.Scan.WatchDebounceMs = 10 // Fast debounce for tests
	return &TestConfigBuilder{cfg: cfg}
}

// WithFormat selects the analyzer output dialect
func (b *TestConfigBuilder) WithFormat(format string) *TestConfigBuilder {
	b.cfg.Analyzer.Format = format
	return b
}

// WithExecutable sets the analyzer path
func (b *TestConfigBuilder) WithExecutable(path string) *TestConfigBuilder {
	b.cfg.Analyzer.Path = path
	return b
}

// WithFilePattern replaces the eligible file regex
func (b *TestConfigBuilder) WithFilePattern(pattern string) *TestConfigBuilder {
	b.cfg.Lint.FilePattern = pattern
	return b
}

// WithAlwaysIgnore adds patterns that are ignored regardless of the ignore file
func (b *TestConfigBuilder) WithAlwaysIgnore(patterns ...string) *TestConfigBuilder {
	b.cfg.Lint.AlwaysIgnore = append(b.cfg.Lint.AlwaysIgnore, patterns...)
	return b
}

// WithCustomConfig enables the explicit analyzer config override
func (b *TestConfigBuilder) WithCustomConfig(path string) *TestConfigBuilder {
	b.cfg.Analyzer.UseCustomConfig = true
	b.cfg.Analyzer.CustomConfigPath = path
	return b
}

// WithTimeoutMs sets the per-scan timeout
func (b *TestConfigBuilder) WithTimeoutMs(ms int) *TestConfigBuilder {
	b.cfg.Scan.TimeoutMs = ms
	return b
}

// WithMaxConcurrent limits parallel batch scans
func (b *TestConfigBuilder) WithMaxConcurrent(n int) *TestConfigBuilder {
	b.cfg.Scan.MaxConcurrent = n
	return b
}

// Disabled turns linting off
func (b *TestConfigBuilder) Disabled() *TestConfigBuilder {
	b.cfg.Lint.Enabled = false
	return b
}

// Build returns the final test config
func (b *TestConfigBuilder) Build() *config.Config {
	return b.cfg
}
