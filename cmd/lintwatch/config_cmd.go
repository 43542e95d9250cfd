package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lintwatch/internal/config"
)

func configCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	switch c.String("output") {
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to convert to TOML: %v", err)
		}
		_, err = c.App.Writer.Write(data)
		return err
	case "kdl", "":
		fmt.Fprint(c.App.Writer, configToKDL(cfg))
		return nil
	default:
		return fmt.Errorf("unknown config output %q (want kdl or toml)", c.String("output"))
	}
}

// configToKDL renders cfg in the .lintwatch.kdl schema.
func configToKDL(cfg *config.Config) string {
	var sb strings.Builder
	sb.WriteString("// Effective lintwatch configuration\n\n")
	fmt.Fprintf(&sb, "version %d\n\n", cfg.Version)

	sb.WriteString("project {\n")
	fmt.Fprintf(&sb, "    root %s\n", strconv.Quote(cfg.Project.Root))
	sb.WriteString("}\n\n")

	sb.WriteString("lint {\n")
	fmt.Fprintf(&sb, "    enabled %t\n", cfg.Lint.Enabled)
	fmt.Fprintf(&sb, "    file_pattern %s\n", rawString(cfg.Lint.FilePattern))
	fmt.Fprintf(&sb, "    ignore_file %s\n", strconv.Quote(cfg.Lint.IgnoreFile))
	fmt.Fprintf(&sb, "    ignore_build_output %t\n", cfg.Lint.IgnoreBuildOutput)
	if len(cfg.Lint.AlwaysIgnore) > 0 {
		fmt.Fprintf(&sb, "    always_ignore %s\n", quoteAll(cfg.Lint.AlwaysIgnore))
	}
	sb.WriteString("}\n\n")

	sb.WriteString("analyzer {\n")
	fmt.Fprintf(&sb, "    path %s\n", strconv.Quote(cfg.Executable()))
	fmt.Fprintf(&sb, "    format %s\n", strconv.Quote(string(cfg.OutputFormat())))
	fmt.Fprintf(&sb, "    use_custom_config %t\n", cfg.Analyzer.UseCustomConfig)
	fmt.Fprintf(&sb, "    custom_config %s\n", strconv.Quote(cfg.Analyzer.CustomConfigPath))
	if len(cfg.Analyzer.ProjectConfigFiles) > 0 {
		fmt.Fprintf(&sb, "    project_config %s\n", quoteAll(cfg.Analyzer.ProjectConfigFiles))
	}
	fmt.Fprintf(&sb, "    home_config %s\n", strconv.Quote(cfg.Analyzer.HomeConfigFile))
	sb.WriteString("}\n\n")

	sb.WriteString("scan {\n")
	fmt.Fprintf(&sb, "    timeout_ms %d\n", cfg.Scan.TimeoutMs)
	fmt.Fprintf(&sb, "    max_concurrent %d\n", cfg.Scan.MaxConcurrent)
	fmt.Fprintf(&sb, "    watch %t\n", cfg.Scan.WatchMode)
	fmt.Fprintf(&sb, "    watch_debounce_ms %d\n", cfg.Scan.WatchDebounceMs)
	sb.WriteString("}\n")
	return sb.String()
}

// rawString writes s as a KDL raw string so regex backslashes survive.
func rawString(s string) string {
	hashes := "#"
	for strings.Contains(s, "\""+hashes) {
		hashes += "#"
	}
	return "r" + hashes + "\"" + s + "\"" + hashes
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, " ")
}
