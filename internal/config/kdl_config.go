package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/lintwatch/internal/debug"
)

// LoadKDL attempts to load configuration from .lintwatch.kdl in projectRoot.
// It returns nil, nil when no such file exists.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, KDLFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", KDLFileName, err)
	}

	cfg, err := parseKDL(string(content), projectRoot)
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, projectRoot)
	debug.LogConfig("loaded %s\n", kdlPath)
	return cfg, nil
}

// parseKDL applies the document on top of the defaults for root.
func parseKDL(content string, root string) (*Config, error) {
	cfg := Default(root)
	cfg.Project.Root = ""

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
			}
		case "lint":
			parseLintSection(cfg, n)
		case "analyzer":
			parseAnalyzerSection(cfg, n)
		case "scan":
			parseScanSection(cfg, n)
		default:
			log.Printf("WARNING: unknown section '%s' in %s", nodeName(n), KDLFileName)
		}
	}

	return cfg, nil
}

func parseLintSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "enabled":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Lint.Enabled = b
			}
		case "file_pattern":
			if s, ok := firstStringArg(cn); ok {
				cfg.Lint.FilePattern = s
			}
		case "ignore_file":
			if s, ok := firstStringArg(cn); ok {
				cfg.Lint.IgnoreFile = s
			}
		case "ignore_build_output":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Lint.IgnoreBuildOutput = b
			}
		case "always_ignore":
			cfg.Lint.AlwaysIgnore = DeduplicatePatterns(append(cfg.Lint.AlwaysIgnore, collectStringArgs(cn)...))
		}
	}
}

func parseAnalyzerSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "path":
			if s, ok := firstStringArg(cn); ok {
				cfg.Analyzer.Path = s
			}
		case "format":
			if s, ok := firstStringArg(cn); ok {
				cfg.Analyzer.Format = s
			}
		case "use_custom_config":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Analyzer.UseCustomConfig = b
			}
		case "custom_config":
			if s, ok := firstStringArg(cn); ok {
				cfg.Analyzer.CustomConfigPath = s
			}
		case "project_config":
			// An explicit list replaces the defaults
			cfg.Analyzer.ProjectConfigFiles = collectStringArgs(cn)
		case "home_config":
			if s, ok := firstStringArg(cn); ok {
				cfg.Analyzer.HomeConfigFile = s
			}
		}
	}
}

func parseScanSection(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "timeout_ms":
			if v, ok := firstIntArg(cn); ok {
				cfg.Scan.TimeoutMs = v
			}
		case "max_concurrent":
			if v, ok := firstIntArg(cn); ok {
				cfg.Scan.MaxConcurrent = v
			}
		case "watch":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Scan.WatchMode = b
			}
		case "watch_debounce_ms":
			if v, ok := firstIntArg(cn); ok {
				cfg.Scan.WatchDebounceMs = v
			}
		}
	}
}

// Helper functions over the kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}
func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		log.Printf("WARNING: invalid integer value for '%s' in KDL config, got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}
func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	// Inline form: always_ignore "a" "b"
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block form: always_ignore { "a"; "b" } where each child's name is the value
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}
func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
