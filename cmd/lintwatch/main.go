package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lintwatch/internal/config"
	"github.com/standardbeagle/lintwatch/internal/debug"
	"github.com/standardbeagle/lintwatch/internal/types"
	"github.com/standardbeagle/lintwatch/internal/version"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	root := c.String("root")

	cfg, err := config.LoadWithRoot(configPath, root)
	if err != nil {
		if configPath == "" {
			configPath = filepath.Join(root, config.KDLFileName)
		}
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if root != "" {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
		}
		cfg.Project.Root = absRoot
	}
	if c.IsSet("analyzer") {
		cfg.Analyzer.Path = c.String("analyzer")
	}
	if c.IsSet("analyzer-format") {
		cfg.Analyzer.Format = c.String("analyzer-format")
	}
	if c.IsSet("timeout") {
		cfg.Scan.TimeoutMs = c.Int("timeout")
	}
	if c.IsSet("jobs") {
		cfg.Scan.MaxConcurrent = c.Int("jobs")
	}
	if patterns := c.StringSlice("ignore"); len(patterns) > 0 {
		cfg.Lint.AlwaysIgnore = config.DeduplicatePatterns(append(cfg.Lint.AlwaysIgnore, patterns...))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	debug.LogConfig("effective root %s, analyzer %s (%s)\n", cfg.Project.Root, cfg.Executable(), cfg.OutputFormat())
	return cfg, nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "lintwatch",
		Usage:                  "Run ESLint-style analyzers on files and projects, once or continuously",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (.kdl or .toml); default looks up " + config.KDLFileName + " in the root",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, compact, json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:  "analyzer",
				Usage: "Analyzer executable (overrides analyzer.path)",
			},
			&cli.StringFlag{
				Name:  "analyzer-format",
				Usage: "Analyzer output dialect: " + string(types.FormatCompact) + " or " + string(types.FormatJSON),
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Per-scan timeout in milliseconds (0 waits forever)",
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Concurrent analyzer runs in batch mode",
			},
			&cli.StringSliceFlag{
				Name:  "ignore",
				Usage: "Extra ignore globs (e.g., --ignore 'dist/**')",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Lint files or directories once; a directory is one analyzer run",
				ArgsUsage: "[paths...]",
				Action:    checkCommand,
			},
			{
				Name:      "batch",
				Usage:     "Lint every eligible file under a root, one analyzer run per file",
				ArgsUsage: "[root]",
				Action:    batchCommand,
			},
			{
				Name:      "watch",
				Usage:     "Lint a root, then keep its problem list current until interrupted",
				ArgsUsage: "[root]",
				Action:    watchCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Start MCP (Model Context Protocol) server with stdio transport",
				Action: mcpCommand,
			},
			{
				Name:  "config",
				Usage: "Print the effective configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Syntax: kdl, toml",
						Value:   "kdl",
					},
				},
				Action: configCommand,
			},
		},
	}
}

func run(args []string) error {
	if debug.IsDebugEnabled() {
		if path, err := debug.InitDebugLogFile(); err == nil {
			defer debug.CloseDebugLog()
			log.Printf("debug log: %s", path)
		}
	}
	return newApp().Run(args)
}

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, version.Current())
	}
	if err := run(os.Args); err != nil {
		log.Fatal(err)
	}
}
