// Build output detection for JavaScript/TypeScript projects.
// Reads package.json, tsconfig.json and vite configs to find directories
// holding generated code that should never be linted.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// BuildArtifactDetector finds build output directories under a project root
type BuildArtifactDetector struct {
	projectRoot string
}

// NewBuildArtifactDetector creates a new build artifact detector
func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

var viteOutDir = regexp.MustCompile(`outDir\s*:\s*['"]([^'"]+)['"]`)

// DetectOutputDirectories returns doublestar patterns ("**/dist/**") for every
// output directory the project's build configuration declares.
func (bad *BuildArtifactDetector) DetectOutputDirectories() []string {
	var dirs []string
	dirs = append(dirs, bad.fromPackageJSON()...)
	dirs = append(dirs, bad.fromTSConfig()...)
	dirs = append(dirs, bad.fromVite()...)

	patterns := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if p := outDirPattern(d); p != "" {
			patterns = append(patterns, p)
		}
	}
	return DeduplicatePatterns(patterns)
}

func (bad *BuildArtifactDetector) fromPackageJSON() []string {
	data, err := os.ReadFile(filepath.Join(bad.projectRoot, "package.json"))
	if err != nil {
		return nil
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
		Build   struct {
			OutDir string `json:"outDir"`
		} `json:"build"`
	}
	if json.Unmarshal(data, &pkg) != nil {
		return nil
	}

	var dirs []string
	for _, script := range pkg.Scripts {
		parts := strings.Fields(script)
		for i, part := range parts {
			if (part == "--outDir" || part == "-outDir" || part == "--out-dir") && i+1 < len(parts) {
				dirs = append(dirs, strings.Trim(parts[i+1], `"'`))
			}
		}
	}
	if pkg.Build.OutDir != "" {
		dirs = append(dirs, pkg.Build.OutDir)
	}
	return dirs
}

func (bad *BuildArtifactDetector) fromTSConfig() []string {
	data, err := os.ReadFile(filepath.Join(bad.projectRoot, "tsconfig.json"))
	if err != nil {
		return nil
	}
	var ts struct {
		CompilerOptions struct {
			OutDir string `json:"outDir"`
		} `json:"compilerOptions"`
	}
	if json.Unmarshal(data, &ts) != nil || ts.CompilerOptions.OutDir == "" {
		return nil
	}
	return []string{ts.CompilerOptions.OutDir}
}

func (bad *BuildArtifactDetector) fromVite() []string {
	var dirs []string
	for _, name := range []string{"vite.config.js", "vite.config.ts", "vite.config.mjs"} {
		data, err := os.ReadFile(filepath.Join(bad.projectRoot, name))
		if err != nil {
			continue
		}
		if m := viteOutDir.FindSubmatch(data); m != nil {
			dirs = append(dirs, string(m[1]))
		}
	}
	return dirs
}

func outDirPattern(dir string) string {
	dir = strings.Trim(filepath.ToSlash(filepath.Clean(dir)), "/")
	dir = strings.TrimPrefix(dir, "./")
	if dir == "" || dir == "." || strings.HasPrefix(dir, "..") {
		return ""
	}
	return "**/" + dir + "/**"
}

// EnrichIgnoresWithBuildOutput adds the detected build output directories to
// lint.always_ignore.
func (c *Config) EnrichIgnoresWithBuildOutput() {
	if c.Project.Root == "" || !c.Lint.IgnoreBuildOutput {
		return
	}
	detected := NewBuildArtifactDetector(c.Project.Root).DetectOutputDirectories()
	if len(detected) > 0 {
		c.Lint.AlwaysIgnore = DeduplicatePatterns(append(c.Lint.AlwaysIgnore, detected...))
	}
}
