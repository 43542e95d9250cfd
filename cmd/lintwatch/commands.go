package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/lintwatch/internal/config"
	"github.com/standardbeagle/lintwatch/internal/debug"
	"github.com/standardbeagle/lintwatch/internal/display"
	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
	"github.com/standardbeagle/lintwatch/internal/mcp"
	"github.com/standardbeagle/lintwatch/internal/project"
	"github.com/standardbeagle/lintwatch/internal/runner"
	"github.com/standardbeagle/lintwatch/internal/scan"
	"github.com/standardbeagle/lintwatch/internal/scheduler"
	"github.com/standardbeagle/lintwatch/internal/types"
	"github.com/standardbeagle/lintwatch/pkg/pathutil"
)

var outputFormats = map[string]bool{"text": true, "compact": true, "json": true}

// lintEnv is what every linting command needs: configuration, a way to start
// the analyzer and somewhere to write.
type lintEnv struct {
	cfg      *config.Config
	runner   runner.Runner
	resolver project.Resolver
	format   string
	out      io.Writer
	errOut   io.Writer

	// notify prints launch failures as they happen; one-shot commands
	// report them through their exit status instead.
	notify bool

	outMu     sync.Mutex
	launchErr atomic.Pointer[lwerrors.LaunchError]
}

func newEnv(c *cli.Context) (*lintEnv, error) {
	format := c.String("format")
	if !outputFormats[format] {
		return nil, fmt.Errorf("unknown output format %q (want text, compact or json)", format)
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	return &lintEnv{
		cfg:      cfg,
		runner:   runner.NewExecRunner(),
		resolver: project.Chain{project.NewMarkerResolver(), project.NewStaticResolver(cfg.Project.Root)},
		format:   format,
		out:      c.App.Writer,
		errOut:   c.App.ErrWriter,
	}, nil
}

func (e *lintEnv) coordinator() *scan.Coordinator {
	return scan.NewCoordinator(e.cfg, e.runner,
		scan.WithResolver(e.resolver),
		scan.WithNotifier(scan.NotifierFunc(func(le *lwerrors.LaunchError) {
			e.launchErr.Store(le)
			if !e.notify {
				return
			}
			e.outMu.Lock()
			defer e.outMu.Unlock()
			fmt.Fprintf(e.errOut, "lintwatch: %v\nhint: %s\n", le, le.Hint())
		})),
	)
}

func (e *lintEnv) formatter() *display.ProblemFormatter {
	return display.NewProblemFormatter(display.FormatterOptions{Format: e.format, ShowGroup: true})
}

// print writes problems with paths relative to the project root.
func (e *lintEnv) print(problems []types.Problem) {
	rel := pathutil.ToRelativeProblems(problems, e.cfg.Project.Root)
	e.outMu.Lock()
	defer e.outMu.Unlock()
	fmt.Fprint(e.out, e.formatter().Format(rel))
}

func (e *lintEnv) printStats(s scheduler.Stats) {
	if e.format != "text" {
		return
	}
	e.outMu.Lock()
	defer e.outMu.Unlock()
	fmt.Fprintf(e.errOut, "%d files linted, %d ignored", s.Files, s.Ignored)
	if s.TimedOut > 0 {
		fmt.Fprintf(e.errOut, ", %d timed out", s.TimedOut)
	}
	if s.Failed > 0 {
		fmt.Fprintf(e.errOut, ", %d failed", s.Failed)
	}
	fmt.Fprintln(e.errOut)
}

func errorCount(problems []types.Problem) int {
	n := 0
	for _, p := range problems {
		if p.Group == types.GroupError {
			n++
		}
	}
	return n
}

// exitStatus maps a command outcome to the process exit code: 2 when the
// analyzer could not run, 1 when error-severity problems were found.
func exitStatus(errs int, err error) error {
	var le *lwerrors.LaunchError
	switch {
	case errors.As(err, &le):
		return cli.Exit(fmt.Sprintf("lintwatch: %v\nhint: %s", le, le.Hint()), 2)
	case err != nil:
		return cli.Exit("lintwatch: "+err.Error(), 2)
	case errs > 0:
		return cli.Exit("", 1)
	}
	return nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func checkCommand(c *cli.Context) error {
	env, err := newEnv(c)
	if err != nil {
		return exitStatus(0, err)
	}
	ctx, stop := signalContext(c)
	defer stop()

	problems, err := runCheck(ctx, env, c.Args().Slice())
	if err != nil {
		return exitStatus(0, err)
	}
	env.print(problems)
	return exitStatus(errorCount(problems), nil)
}

// runCheck scans each path once: files individually, directories with a
// single analyzer run over the tree. A failing path does not stop the others;
// their errors are returned together.
func runCheck(ctx context.Context, env *lintEnv, paths []string) ([]types.Problem, error) {
	if len(paths) == 0 {
		paths = []string{env.cfg.Project.Root}
	}
	coord := env.coordinator()
	defer coord.Shutdown()
	gate := scheduler.NewGate(env.cfg, env.resolver)

	results := make([][]types.Problem, len(paths))
	errs := make([]error, len(paths))
	g := new(errgroup.Group)
	g.SetLimit(max(env.cfg.Scan.MaxConcurrent, 1))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i], errs[i] = checkPath(ctx, env, coord, gate, path)
			return nil
		})
	}
	_ = g.Wait()

	if err := lwerrors.NewMultiError(errs).ErrorOrNil(); err != nil {
		return nil, err
	}
	var problems []types.Problem
	for _, ps := range results {
		problems = append(problems, ps...)
	}
	scheduler.SortProblems(problems)
	return problems, nil
}

func checkPath(ctx context.Context, env *lintEnv, coord *scan.Coordinator, gate *scheduler.Gate, path string) ([]types.Problem, error) {
	target, err := types.TargetFor(path)
	if err != nil {
		return nil, err
	}
	if !target.IsDir() && !gate.Allows(target.Path) {
		debug.LogScan("check: skipping %s\n", target.Path)
		return nil, nil
	}

	// The coordinator enforces the configured timeout
	collector := scan.NewCollector()
	res, err := coord.Verify(ctx, target, collector).Wait(ctx)
	switch {
	case err != nil:
		return nil, fmt.Errorf("%s: %w", target.Path, err)
	case res.Err != nil:
		return nil, res.Err
	case res.Skipped:
		return nil, nil
	case !res.Complete():
		return nil, fmt.Errorf("%s: %w", target.Path, res.Failure())
	}
	return scheduler.ProblemsFrom(collector.Diagnostics()), nil
}

func rootArg(c *cli.Context, cfg *config.Config) (string, error) {
	root := cfg.Project.Root
	if c.Args().Len() > 0 {
		root = c.Args().First()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", root)
	}
	return abs, nil
}

func batchCommand(c *cli.Context) error {
	env, err := newEnv(c)
	if err != nil {
		return exitStatus(0, err)
	}
	root, err := rootArg(c, env.cfg)
	if err != nil {
		return exitStatus(0, err)
	}
	ctx, stop := signalContext(c)
	defer stop()

	problems, stats, err := runBatch(ctx, env, root)
	if err != nil {
		return exitStatus(0, err)
	}
	env.print(problems)
	env.printStats(stats)
	return exitStatus(errorCount(problems), nil)
}

// runBatch lints every eligible file under root, one analyzer run each.
func runBatch(ctx context.Context, env *lintEnv, root string) ([]types.Problem, scheduler.Stats, error) {
	coord := env.coordinator()
	defer coord.Shutdown()
	b := scheduler.NewBatchScheduler(coord, scheduler.NewGate(env.cfg, env.resolver), scheduler.BatchOptions{})
	defer b.Close()

	list := scheduler.NewProblemList()
	run, err := b.SetScope(ctx, scheduler.Scope{Roots: []string{root}}, list)
	if err != nil {
		return nil, scheduler.Stats{}, err
	}
	stats, err := run.Wait(ctx)
	if err != nil {
		return nil, stats, err
	}
	if le := env.launchErr.Load(); le != nil && stats.Complete == 0 && stats.Files > 0 {
		return nil, stats, le
	}
	return list.Problems(), stats, nil
}

// watchSink prints per-file updates once the initial batch is reported.
type watchSink struct {
	*scheduler.ProblemList
	env  *lintEnv
	live atomic.Bool
}

func (s *watchSink) SetProblems(file string, problems []types.Problem) {
	s.ProblemList.SetProblems(file, problems)
	if !s.live.Load() {
		return
	}
	if len(problems) == 0 && s.env.format == "text" {
		s.env.outMu.Lock()
		fmt.Fprintf(s.env.out, "%s: clean\n", pathutil.ToRelative(file, s.env.cfg.Project.Root))
		s.env.outMu.Unlock()
		return
	}
	s.env.print(problems)
}

func watchCommand(c *cli.Context) error {
	env, err := newEnv(c)
	if err != nil {
		return exitStatus(0, err)
	}
	root, err := rootArg(c, env.cfg)
	if err != nil {
		return exitStatus(0, err)
	}
	ctx, stop := signalContext(c)
	defer stop()

	return exitStatus(0, runWatch(ctx, env, root))
}

// runWatch reports the initial batch for root, then follows file changes
// until ctx is done.
func runWatch(ctx context.Context, env *lintEnv, root string) error {
	env.notify = true
	coord := env.coordinator()
	defer coord.Shutdown()
	b := scheduler.NewBatchScheduler(coord, scheduler.NewGate(env.cfg, env.resolver), scheduler.BatchOptions{Watch: true})
	defer b.Close()

	sink := &watchSink{ProblemList: scheduler.NewProblemList(), env: env}
	run, err := b.SetScope(ctx, scheduler.Scope{Roots: []string{root}}, sink)
	if err != nil {
		return err
	}
	stats, err := run.Wait(ctx)
	if err != nil {
		// Interrupted during the initial batch
		return nil
	}
	env.print(sink.Problems())
	env.printStats(stats)
	sink.live.Store(true)

	if env.format == "text" {
		env.outMu.Lock()
		fmt.Fprintf(env.errOut, "watching %s, press Ctrl+C to stop\n", root)
		env.outMu.Unlock()
	}
	<-ctx.Done()
	return nil
}

func mcpCommand(c *cli.Context) error {
	// Stdio carries the protocol; nothing else may write there
	debug.SetMCPMode(true)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return debug.Fatal("failed to load config: %v\n", err)
	}

	logger := mcp.NewDiagnosticLogger(true)
	defer logger.Close()
	log.SetOutput(logger.Writer())

	srv, err := mcp.NewServer(cfg, runner.NewExecRunner(),
		mcp.WithLogger(logger),
		mcp.WithWatch(cfg.Scan.WatchMode),
	)
	if err != nil {
		return debug.Fatal("failed to create MCP server: %v\n", err)
	}
	defer srv.Shutdown()

	ctx, stop := signalContext(c)
	defer stop()

	debug.LogMCP("Starting MCP server with stdio transport...\n")
	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		return debug.Fatal("MCP server error: %v\n", err)
	}
	return nil
}
