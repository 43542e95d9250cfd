package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIgnore(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".eslintignore"), []byte(content), 0644))
}

func TestIgnoreRuleSet_DirectoryPatterns(t *testing.T) {
	root := t.TempDir()
	writeIgnore(t, root, "# generated\nbuild/\n/coverage/\nsrc/vendor/\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0755))

	rs := LoadIgnore(root)
	require.NoError(t, rs.Err())

	tests := []struct {
		path    string
		ignored bool
	}{
		{"build", true},
		{"build/app.js", true},
		{"build/deep/nested/app.js", true},
		{"packages/web/build/app.js", true},
		{"coverage/lcov.js", true},
		{"packages/web/coverage/lcov.js", false}, // anchored
		{"src/vendor/lib.js", true},
		{"lib/src/vendor/lib.js", false}, // inner slash anchors
		{"src/app.js", false},
		{"builder.js", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignored, rs.IsIgnored(filepath.Join(root, tt.path)))
		})
	}
}

func TestIgnoreRuleSet_DirectoryPatternSkipsPlainFiles(t *testing.T) {
	root := t.TempDir()
	writeIgnore(t, root, "build/\nout/\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "build"), []byte("#!/bin/sh\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg", "out"), 0755))

	rs := LoadIgnore(root)
	require.NoError(t, rs.Err())

	assert.False(t, rs.IsIgnored(filepath.Join(root, "build")), "a file named like a directory pattern")
	assert.True(t, rs.IsIgnored(filepath.Join(root, "pkg", "out")))
	assert.True(t, rs.IsIgnored(filepath.Join(root, "pkg", "out", "x.js")))
	assert.True(t, rs.IsIgnored(filepath.Join(root, "lib", "build", "y.js")))
}

func TestIgnoreRuleSet_GlobsAndNegation(t *testing.T) {
	root := t.TempDir()
	writeIgnore(t, root, "*.min.js\n**/fixtures/**\n!keep.min.js\n")

	rs := LoadIgnore(root)

	assert.True(t, rs.IsIgnored(filepath.Join(root, "a.min.js")))
	assert.True(t, rs.IsIgnored(filepath.Join(root, "lib", "b.min.js")))
	assert.True(t, rs.IsIgnored(filepath.Join(root, "test", "fixtures", "x.js")))
	assert.False(t, rs.IsIgnored(filepath.Join(root, "keep.min.js")))
	assert.False(t, rs.IsIgnored(filepath.Join(root, "a.js")))
	assert.Equal(t, []string{"*.min.js", "**/fixtures/**", "!keep.min.js"}, rs.Patterns())
}

func TestIgnoreRuleSet_RelativePathsResolveAgainstRoot(t *testing.T) {
	root := t.TempDir()
	writeIgnore(t, root, "dist/\n")

	rs := LoadIgnore(root)
	assert.True(t, rs.IsIgnored("dist/x.js"))
	assert.False(t, rs.IsIgnored("src/x.js"))
	assert.False(t, rs.IsIgnored(root))
}

func TestIgnoreRuleSet_BuiltinDependencyDirWithoutIgnoreFile(t *testing.T) {
	root := t.TempDir()

	rs := LoadIgnore(root)
	require.NoError(t, rs.Err())
	assert.Empty(t, rs.Patterns())

	assert.True(t, rs.IsIgnored(filepath.Join(root, "node_modules")))
	assert.True(t, rs.IsIgnored(filepath.Join(root, "node_modules", "lodash", "index.js")))
	assert.True(t, rs.IsIgnored(filepath.Join(root, "packages", "a", "node_modules", "x.js")))
	assert.False(t, rs.IsIgnored(filepath.Join(root, "src", "index.js")))
}

func TestIgnoreRuleSet_BuiltinAppliesWhenFileDoesNotMentionIt(t *testing.T) {
	root := t.TempDir()
	writeIgnore(t, root, "dist/\n!node_modules/\n")

	rs := LoadIgnore(root)
	assert.True(t, rs.IsIgnored(filepath.Join(root, "node_modules", "react", "index.js")))
	assert.True(t, rs.IsIgnored(filepath.Join(root, "dist", "bundle.js")))
}

func TestIgnoreRuleSet_PathsOutsideRootOnlyUseBuiltins(t *testing.T) {
	root := t.TempDir()
	writeIgnore(t, root, "*.js\n")

	rs := LoadIgnore(root)
	outside := filepath.Join(filepath.Dir(root), "elsewhere", "a.js")
	assert.False(t, rs.IsIgnored(outside))
	assert.True(t, rs.IsIgnored(filepath.Join(filepath.Dir(root), "elsewhere", "node_modules", "a.js")))
}

func TestIgnoreRuleSet_MalformedFileDegradesToBuiltin(t *testing.T) {
	root := t.TempDir()
	writeIgnore(t, root, "dist/\nsrc/[unclosed\n")

	rs := LoadIgnore(root)
	require.Error(t, rs.Err())
	assert.Empty(t, rs.Patterns())
	assert.False(t, rs.IsIgnored(filepath.Join(root, "dist", "a.js")))
	assert.True(t, rs.IsIgnored(filepath.Join(root, "node_modules", "a.js")))
}

func TestIgnoreRuleSet_UnreadableFileDegradesToBuiltin(t *testing.T) {
	root := t.TempDir()
	// A directory where the file should be makes the read fail
	require.NoError(t, os.Mkdir(filepath.Join(root, ".eslintignore"), 0755))

	rs := LoadIgnore(root)
	assert.Error(t, rs.Err())
	assert.True(t, rs.IsIgnored(filepath.Join(root, "node_modules", "a.js")))
	assert.False(t, rs.IsIgnored(filepath.Join(root, "a.js")))
}

func TestIgnoreRuleSet_ExtraAlwaysIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	rs := BuiltinRuleSet(root, []string{"**/*.generated.js"})

	assert.True(t, rs.IsIgnored(filepath.Join(root, "api", "client.generated.js")))
	assert.False(t, rs.IsIgnored(filepath.Join(root, "api", "client.js")))
}

func TestIgnoreCache_ReloadsOnModification(t *testing.T) {
	root := t.TempDir()
	cache := NewIgnoreCache(Default(root))

	first := cache.Get(root)
	assert.False(t, first.IsIgnored(filepath.Join(root, "dist", "a.js")))
	assert.Same(t, first, cache.Get(root))

	writeIgnore(t, root, "dist/\n")
	second := cache.Get(root)
	assert.NotSame(t, first, second)
	assert.True(t, second.IsIgnored(filepath.Join(root, "dist", "a.js")))

	writeIgnore(t, root, "out/\n")
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(root, ".eslintignore"), later, later))
	third := cache.Get(root)
	assert.False(t, third.IsIgnored(filepath.Join(root, "dist", "a.js")))
	assert.True(t, third.IsIgnored(filepath.Join(root, "out", "a.js")))

	cache.Invalidate(root)
	assert.NotSame(t, third, cache.Get(root))
}

func TestParseIgnorePattern(t *testing.T) {
	p, err := ParseIgnorePattern("!/lib/")
	require.NoError(t, err)
	assert.True(t, p.Negate)
	assert.True(t, p.Directory)
	assert.True(t, p.Anchored)
	assert.Equal(t, "lib", p.Pattern)

	_, err = ParseIgnorePattern("/")
	assert.Error(t, err)
}
