package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lintwatch/internal/config"
	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
	"github.com/standardbeagle/lintwatch/internal/project"
	"github.com/standardbeagle/lintwatch/internal/types"
	"github.com/standardbeagle/lintwatch/testhelpers"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func compactLine(file string, line int, sev, msg string) string {
	return file + ": line " + strconv.Itoa(line) + ", col 1, " + sev + " - " + msg
}

func newTestEnv(t *testing.T, p *testhelpers.ProjectBuilder, fake *testhelpers.FakeRunner, format string) (*lintEnv, *syncBuffer, *syncBuffer) {
	t.Helper()
	out, errOut := &syncBuffer{}, &syncBuffer{}
	return &lintEnv{
		cfg:      testhelpers.NewTestConfigBuilder(p.Root()).Build(),
		runner:   fake,
		resolver: project.NewStaticResolver(p.Root()),
		format:   format,
		out:      out,
		errOut:   errOut,
	}, out, errOut
}

func TestRunCheck_FilesAndDirectories(t *testing.T) {
	p := testhelpers.NewProject(t).
		File("src/a.js", "a\n").
		File("lib/b.js", "b\n").
		File("lib/c.js", "c\n").
		File("README.md", "r\n")
	a, b, c := p.Path("src/a.js"), p.Path("lib/b.js"), p.Path("lib/c.js")
	fake := testhelpers.NewFakeRunner().
		On(a, testhelpers.FakeScript{Stdout: []string{compactLine(a, 3, "Error", "Missing semicolon.")}, ExitCode: 1}).
		On(p.Path("lib"), testhelpers.FakeScript{Stdout: []string{
			compactLine(c, 1, "Warning", "Prefer const."),
			compactLine(b, 2, "Error", "'x' is not defined."),
		}, ExitCode: 1})
	env, _, _ := newTestEnv(t, p, fake, "text")

	problems, err := runCheck(context.Background(), env, []string{a, p.Path("lib"), p.Path("README.md")})
	require.NoError(t, err)
	require.Len(t, problems, 3)

	// Sorted by file regardless of scan order
	assert.Equal(t, b, problems[0].File)
	assert.Equal(t, c, problems[1].File)
	assert.Equal(t, a, problems[2].File)
	assert.Equal(t, 2, errorCount(problems))

	// One run for the directory, one for the file, none for the markdown file
	assert.Len(t, fake.Calls(), 2)
	assert.Equal(t, 1, fake.CallCount(p.Path("lib")))
}

func TestRunCheck_LaunchFailure(t *testing.T) {
	p := testhelpers.NewProject(t).File("a.js", "a\n")
	fake := testhelpers.NewFakeRunner().Default(testhelpers.FakeScript{LaunchErr: true})
	env, _, errOut := newTestEnv(t, p, fake, "text")

	_, err := runCheck(context.Background(), env, []string{p.Path("a.js")})
	require.Error(t, err)
	assert.True(t, lwerrors.IsLaunchFailure(err))
	// Reported through the exit status, not printed twice
	assert.Empty(t, errOut.String())

	var exit cli.ExitCoder
	require.True(t, errors.As(exitStatus(0, err), &exit))
	assert.Equal(t, 2, exit.ExitCode())
	assert.Contains(t, exit.Error(), "hint:")
}

func TestRunCheck_MissingPath(t *testing.T) {
	p := testhelpers.NewProject(t)
	env, _, _ := newTestEnv(t, p, testhelpers.NewFakeRunner(), "text")

	_, err := runCheck(context.Background(), env, []string{p.Path("nope.js")})
	assert.Error(t, err)
}

func TestRunCheck_MissingPathDoesNotStopOthers(t *testing.T) {
	p := testhelpers.NewProject(t).File("a.js", "a\n")
	fake := testhelpers.NewFakeRunner()
	env, _, _ := newTestEnv(t, p, fake, "text")

	_, err := runCheck(context.Background(), env, []string{p.Path("nope.js"), p.Path("a.js")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.js")
	assert.Equal(t, 1, fake.CallCount(p.Path("a.js")))
}

func TestRunCheck_ScanTimeoutIsAnError(t *testing.T) {
	p := testhelpers.NewProject(t).File("a.js", "a\n")
	a := p.Path("a.js")
	fake := testhelpers.NewFakeRunner().On(a, testhelpers.FakeScript{
		Stdout: []string{compactLine(a, 1, "Error", "partial")},
		Block:  true,
	})
	env, _, _ := newTestEnv(t, p, fake, "text")
	env.cfg.Scan.TimeoutMs = 50

	problems, err := runCheck(context.Background(), env, []string{a})
	require.Error(t, err)
	assert.ErrorIs(t, err, lwerrors.ErrScanTimeout)
	assert.Empty(t, problems, "partial output is not a clean result")
}

func TestRunBatch(t *testing.T) {
	p := testhelpers.NewProject(t).
		File("src/a.js", "a\n").
		File("src/b.js", "b\n").
		File("src/vendor/v.js", "v\n").
		Ignore("src/vendor/")
	a := p.Path("src/a.js")
	fake := testhelpers.NewFakeRunner().
		On(a, testhelpers.FakeScript{Stdout: []string{compactLine(a, 1, "Warning", "Unexpected console statement.")}, ExitCode: 1})
	env, out, errOut := newTestEnv(t, p, fake, "text")

	problems, stats, err := runBatch(context.Background(), env, p.Root())
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, 0, errorCount(problems))
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Complete)

	env.print(problems)
	env.printStats(stats)
	assert.Contains(t, out.String(), "src/a.js\n")
	assert.Contains(t, out.String(), "1 problem (0 errors, 1 warning)")
	assert.Contains(t, errOut.String(), "2 files linted")
	assert.Nil(t, exitStatus(errorCount(problems), nil))
}

func TestRunBatch_LaunchFailure(t *testing.T) {
	p := testhelpers.NewProject(t).File("a.js", "a\n").File("b.js", "b\n")
	fake := testhelpers.NewFakeRunner().Default(testhelpers.FakeScript{LaunchErr: true})
	env, _, _ := newTestEnv(t, p, fake, "json")

	_, stats, err := runBatch(context.Background(), env, p.Root())
	require.Error(t, err)
	assert.True(t, lwerrors.IsLaunchFailure(err))
	assert.Equal(t, 2, stats.Failed)
}

func TestRunWatch_ReportsChanges(t *testing.T) {
	p := testhelpers.NewProject(t).File("src/a.js", "a\n")
	a := p.Path("src/a.js")
	fake := testhelpers.NewFakeRunner().
		On(a, testhelpers.FakeScript{Stdout: []string{compactLine(a, 1, "Error", "Missing semicolon.")}, ExitCode: 1})
	env, out, errOut := newTestEnv(t, p, fake, "compact")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, env, p.Root()) }()

	testhelpers.WaitFor(t, func() bool {
		return strings.Contains(out.String(), "Missing semicolon.")
	}, 5*time.Second)
	// Compact output prints no banner
	assert.Empty(t, errOut.String())

	// Give the watcher a moment to be live before touching the file
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(a, []byte("a;\n"), 0644))
	testhelpers.WaitFor(t, func() bool {
		return fake.CallCount(a) >= 2 && strings.Count(out.String(), "Missing semicolon.") >= 2
	}, 5*time.Second)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runWatch did not return after cancel")
	}
}

func TestExitStatus(t *testing.T) {
	assert.Nil(t, exitStatus(0, nil))

	var exit cli.ExitCoder
	require.True(t, errors.As(exitStatus(3, nil), &exit))
	assert.Equal(t, 1, exit.ExitCode())

	require.True(t, errors.As(exitStatus(0, errors.New("boom")), &exit))
	assert.Equal(t, 2, exit.ExitCode())
}

func TestConfigToKDL_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Lint.AlwaysIgnore = append(cfg.Lint.AlwaysIgnore, "dist/**")
	cfg.Analyzer.Path = "/opt/bin/eslint"
	cfg.Analyzer.Format = string(types.FormatJSON)
	cfg.Scan.TimeoutMs = 2500
	cfg.Lint.IgnoreBuildOutput = false

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.KDLFileName), []byte(configToKDL(cfg)), 0644))
	loaded, err := config.LoadKDL(dir)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, cfg.Lint.FilePattern, loaded.Lint.FilePattern)
	assert.ElementsMatch(t, cfg.Lint.AlwaysIgnore, loaded.Lint.AlwaysIgnore)
	assert.Equal(t, "/opt/bin/eslint", loaded.Analyzer.Path)
	assert.Equal(t, string(types.FormatJSON), loaded.Analyzer.Format)
	assert.Equal(t, 2500, loaded.Scan.TimeoutMs)
	assert.False(t, loaded.Lint.IgnoreBuildOutput)
}

func TestApp_ConfigCommand(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"lintwatch", "--root", dir, "--jobs", "7", "config"}))
	assert.Contains(t, out.String(), "max_concurrent 7")
	assert.Contains(t, out.String(), "lint {")

	out.Reset()
	app = newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"lintwatch", "--root", dir, "config", "--output", "toml"}))
	assert.Contains(t, out.String(), "[scan]")
}

func TestNewEnv_RejectsUnknownFormat(t *testing.T) {
	app := newApp()
	app.Commands = []*cli.Command{{
		Name: "probe",
		Action: func(c *cli.Context) error {
			_, err := newEnv(c)
			return err
		},
	}}
	err := app.Run([]string{"lintwatch", "--root", t.TempDir(), "--format", "xml", "probe"})
	assert.Error(t, err)
}
