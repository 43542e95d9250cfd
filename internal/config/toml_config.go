package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/lintwatch/internal/debug"
)

// LoadTOML loads .lintwatch.toml from projectRoot, or returns nil, nil when absent.
func LoadTOML(projectRoot string) (*Config, error) {
	tomlPath := filepath.Join(projectRoot, TOMLFileName)

	content, err := os.ReadFile(tomlPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", TOMLFileName, err)
	}

	cfg, err := parseTOML(content, projectRoot)
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, projectRoot)
	debug.LogConfig("loaded %s\n", tomlPath)
	return cfg, nil
}

// parseTOML decodes over the defaults, so absent keys keep their default values.
func parseTOML(content []byte, root string) (*Config, error) {
	cfg := Default(root)
	cfg.Project.Root = ""

	builtin := cfg.Lint.AlwaysIgnore
	cfg.Lint.AlwaysIgnore = nil

	if err := toml.Unmarshal(content, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("failed to parse TOML config at %d:%d: %w", row, col, err)
		}
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg.Lint.AlwaysIgnore = DeduplicatePatterns(append(builtin, cfg.Lint.AlwaysIgnore...))
	return cfg, nil
}
