package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hbollon/go-edlib"

	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
	"github.com/standardbeagle/lintwatch/internal/types"
)

// Validator validates configuration and sets defaults for unset values
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies defaults.
// Returns a *errors.ConfigError naming the offending field.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return lwerrors.NewConfigError("project.root", cfg.Project.Root, err)
	}

	if err := v.validateLintConfig(&cfg.Lint); err != nil {
		return lwerrors.NewConfigError("lint.file_pattern", cfg.Lint.FilePattern, err)
	}

	if err := v.validateAnalyzerFormat(cfg.Analyzer.Format); err != nil {
		return lwerrors.NewConfigError("analyzer.format", cfg.Analyzer.Format, err)
	}

	if err := v.validateScanConfig(&cfg.Scan); err != nil {
		return lwerrors.NewConfigError("scan", "", err)
	}

	v.setDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateLintConfig(lint *Lint) error {
	if lint.FilePattern == "" {
		return nil
	}
	if _, err := regexp.Compile(lint.FilePattern); err != nil {
		return fmt.Errorf("file_pattern is not a valid regular expression: %w", err)
	}
	return nil
}

// validateAnalyzerFormat accepts the known dialects and suggests the closest
// one for a typo.
func (v *Validator) validateAnalyzerFormat(format string) error {
	if _, err := types.ParseOutputFormat(format); err == nil {
		return nil
	}
	names := make([]string, 0, len(types.OutputFormats))
	for _, f := range types.OutputFormats {
		names = append(names, string(f))
	}
	if suggestion := closestName(strings.ToLower(format), names); suggestion != "" {
		return fmt.Errorf("unknown output format %q, did you mean %q?", format, suggestion)
	}
	return fmt.Errorf("unknown output format %q, expected one of %s", format, strings.Join(names, ", "))
}

func (v *Validator) validateScanConfig(scan *Scan) error {
	// 0 means "use default", applied by setDefaults
	if scan.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms cannot be negative, got %d", scan.TimeoutMs)
	}
	if scan.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent cannot be negative, got %d", scan.MaxConcurrent)
	}
	if scan.WatchDebounceMs < 0 {
		return fmt.Errorf("watch_debounce_ms cannot be negative, got %d", scan.WatchDebounceMs)
	}
	return nil
}

func (v *Validator) setDefaults(cfg *Config) {
	if cfg.Scan.TimeoutMs == 0 {
		cfg.Scan.TimeoutMs = types.DefaultScanTimeoutMs
	}
	if cfg.Scan.MaxConcurrent == 0 {
		cfg.Scan.MaxConcurrent = types.DefaultMaxConcurrentScans
	}
	if cfg.Scan.WatchDebounceMs == 0 {
		cfg.Scan.WatchDebounceMs = types.DefaultWatchDebounceMs
	}
	if cfg.Analyzer.Format == "" {
		cfg.Analyzer.Format = string(types.FormatCompact)
	}
	if cfg.Lint.IgnoreFile == "" {
		cfg.Lint.IgnoreFile = types.DefaultIgnoreFile
	}
	if cfg.Lint.FilePattern == "" {
		cfg.Lint.FilePattern = types.DefaultFilePattern
	}
}

// closestName returns the candidate with the highest Jaro-Winkler similarity
// to s, or "" when nothing is similar enough.
func closestName(s string, candidates []string) string {
	const minSimilarity = 0.6
	best, bestScore := "", float32(0)
	for _, c := range candidates {
		score, err := edlib.StringsSimilarity(s, c, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < minSimilarity {
		return ""
	}
	return best
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
