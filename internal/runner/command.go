package runner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/lintwatch/internal/config"
	"github.com/standardbeagle/lintwatch/internal/project"
	"github.com/standardbeagle/lintwatch/internal/types"
)

// BuildCommand resolves the working directory, analyzer config and
// arguments for one scan of target.
//
// Arguments are: --config <path> (only when one resolves), --format <f>,
// then "." for a directory target or the absolute file path.
func BuildCommand(cfg *config.Config, target types.ScanTarget, resolver project.Resolver) Command {
	dir := WorkingDir(target, resolver)

	var args []string
	if cfgPath := ResolveAnalyzerConfig(cfg, dir); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	args = append(args, "--format", cfg.OutputFormat().String())
	if target.IsDir() {
		args = append(args, ".")
	} else {
		args = append(args, target.Path)
	}

	return Command{Path: cfg.Executable(), Dir: dir, Args: args}
}

// WorkingDir is the directory itself for a directory target, and the owning
// project root for a file target. It is empty when no project owns the file.
func WorkingDir(target types.ScanTarget, resolver project.Resolver) string {
	if target.IsDir() {
		return target.Path
	}
	if resolver == nil {
		return ""
	}
	if root, ok := resolver.ProjectRoot(target.Path); ok {
		return root
	}
	return ""
}

// ResolveAnalyzerConfig picks the --config value, first match wins:
//  1. the custom config, when use_custom_config is set and the path is non-empty
//  2. a project-local config file at projectRoot
//  3. ~/<home_config>, only if that file exists
//
// An empty result means the analyzer discovers its own configuration.
func ResolveAnalyzerConfig(cfg *config.Config, projectRoot string) string {
	if cfg.Analyzer.UseCustomConfig {
		if p := strings.TrimSpace(cfg.Analyzer.CustomConfigPath); p != "" {
			return config.ExpandHome(p)
		}
	}

	if projectRoot != "" {
		if p, ok := project.FindFile(projectRoot, cfg.Analyzer.ProjectConfigFiles); ok {
			return p
		}
	}

	if name := strings.TrimSpace(cfg.Analyzer.HomeConfigFile); name != "" {
		home, err := os.UserHomeDir()
		if err == nil {
			p := filepath.Join(home, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p
			}
		}
	}

	return ""
}
