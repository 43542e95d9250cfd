// Package version identifies the running lintwatch build.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Version is the lintwatch release.
const Version = "0.3.0"

// Commit overrides the VCS revision stamped by the Go toolchain, for builds
// made outside a checkout: -ldflags "-X .../internal/version.Commit=<sha>".
var Commit string

// Build describes the binary: release, source revision and toolchain.
type Build struct {
	Version   string
	Commit    string // empty when unknown
	Modified  bool   // built from a dirty tree
	GoVersion string
}

var (
	current     Build
	currentOnce sync.Once
)

// Current returns the build of the running binary.
func Current() Build {
	currentOnce.Do(func() {
		current = fromBuildInfo(debug.ReadBuildInfo())
	})
	return current
}

func fromBuildInfo(info *debug.BuildInfo, ok bool) Build {
	b := Build{Version: Version, Commit: Commit}
	if !ok {
		return b
	}
	b.GoVersion = info.GoVersion
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

func (b Build) shortCommit() string {
	if len(b.Commit) > 12 {
		return b.Commit[:12]
	}
	return b.Commit
}

// ServerVersion is the version announced to MCP clients. It carries the
// commit so agents can tell two builds of one release apart.
func (b Build) ServerVersion() string {
	v := b.Version
	if c := b.shortCommit(); c != "" {
		v += "+" + c
		if b.Modified {
			v += ".dirty"
		}
	}
	return v
}

// String is the --version line.
func (b Build) String() string {
	s := "lintwatch " + b.Version
	details := ""
	if c := b.shortCommit(); c != "" {
		details = c
		if b.Modified {
			details += ", modified"
		}
	}
	if b.GoVersion != "" {
		if details != "" {
			details += ", "
		}
		details += b.GoVersion
	}
	if details != "" {
		s += fmt.Sprintf(" (%s)", details)
	}
	return s
}
