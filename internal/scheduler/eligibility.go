// Package scheduler decides when files are scanned and where the results go:
// live annotations for open files, or a project-wide problem list.
package scheduler

import (
	"github.com/standardbeagle/lintwatch/internal/config"
	"github.com/standardbeagle/lintwatch/internal/project"
)

// Gate combines the file allow-list with the ignore rules of the owning root.
type Gate struct {
	filter   *config.FileFilter
	ignores  *config.IgnoreCache
	resolver project.Resolver
	fallback string
}

// NewGate builds a gate from cfg. Ignore rules are looked up per project
// root; files outside any project use cfg.Project.Root.
func NewGate(cfg *config.Config, resolver project.Resolver) *Gate {
	return &Gate{
		filter:   config.NewFileFilter(cfg.Lint.FilePattern),
		ignores:  config.NewIgnoreCache(cfg),
		resolver: resolver,
		fallback: cfg.Project.Root,
	}
}

// RootFor returns the root whose ignore file governs path.
func (g *Gate) RootFor(path string) string {
	if g.resolver != nil {
		if root, ok := g.resolver.ProjectRoot(path); ok {
			return root
		}
	}
	return g.fallback
}

// Eligible applies the file allow-list only.
func (g *Gate) Eligible(path string) bool {
	return g.filter.Eligible(path)
}

// IsIgnored applies the ignore rules of path's root.
func (g *Gate) IsIgnored(path string) bool {
	return g.ignores.Get(g.RootFor(path)).IsIgnored(path)
}

// Allows reports whether path should be scanned at all.
func (g *Gate) Allows(path string) bool {
	return g.Eligible(path) && !g.IsIgnored(path)
}

// Invalidate drops cached ignore rules so the next lookup rereads them.
func (g *Gate) Invalidate(root string) {
	g.ignores.Invalidate(root)
}

