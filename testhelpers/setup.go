package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// WaitFor waits for a condition to become true with timeout
// Usage:
//
//	testhelpers.WaitFor(t, func() bool {
//	    return store.Len() == 2
//	}, 5*time.Second)
func WaitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %v", timeout)
			return
		}
	}
}

// AssertNoLeaks verifies no goroutine leaks occurred during the test
func AssertNoLeaks(t *testing.T) {
	t.Helper()

	if err := goleak.Find(goleak.IgnoreCurrent()); err != nil {
		t.Errorf("Goroutine leak detected: %v", err)
	}
}

// SkipIfShort skips the test if -short flag is provided
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("Skipping in short mode: %s", reason)
	}
}

// ProjectBuilder lays out a throwaway project tree under t.TempDir().
// Usage:
//
//	root := testhelpers.NewProject(t).
//		File("package.json", "{}").
//		File("src/app.js", "let a = 1\n").
//		Ignore("dist/").
//		Root()
type ProjectBuilder struct {
	t    *testing.T
	root string
}

func NewProject(t *testing.T) *ProjectBuilder {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	return &ProjectBuilder{t: t, root: root}
}

// File writes content to rel, creating parent directories.
func (b *ProjectBuilder) File(rel, content string) *ProjectBuilder {
	b.t.Helper()
	path := b.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		b.t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		b.t.Fatalf("write %s: %v", rel, err)
	}
	return b
}

// Dir creates an empty directory.
func (b *ProjectBuilder) Dir(rel string) *ProjectBuilder {
	b.t.Helper()
	if err := os.MkdirAll(b.Path(rel), 0755); err != nil {
		b.t.Fatalf("mkdir %s: %v", rel, err)
	}
	return b
}

// Ignore writes the given patterns as the project's .eslintignore.
func (b *ProjectBuilder) Ignore(patterns ...string) *ProjectBuilder {
	content := ""
	for _, p := range patterns {
		content += p + "\n"
	}
	return b.File(".eslintignore", content)
}

// Path returns the absolute path of rel inside the project.
func (b *ProjectBuilder) Path(rel string) string {
	return filepath.Join(b.root, filepath.FromSlash(rel))
}

// Root returns the project root.
func (b *ProjectBuilder) Root() string {
	return b.root
}
