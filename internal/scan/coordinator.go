// Package scan runs analyzer scans and delivers their diagnostics to sinks.
//
// At most one scan per target is in flight. A new Verify for a target with a
// running scan cancels the stale scan, waits for it to finish, and only then
// starts the analyzer again, so two scans of one target never deliver at the
// same time.
package scan

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/standardbeagle/lintwatch/internal/config"
	"github.com/standardbeagle/lintwatch/internal/debug"
	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
	"github.com/standardbeagle/lintwatch/internal/parser"
	"github.com/standardbeagle/lintwatch/internal/project"
	"github.com/standardbeagle/lintwatch/internal/runner"
	"github.com/standardbeagle/lintwatch/internal/types"
)

// Notifier is told about launch failures, at most once per failure streak.
type Notifier interface {
	NotifyLaunchFailure(err *lwerrors.LaunchError)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(err *lwerrors.LaunchError)

func (f NotifierFunc) NotifyLaunchFailure(err *lwerrors.LaunchError) { f(err) }

// StderrFunc receives the analyzer's stderr, one line at a time.
type StderrFunc func(target types.ScanTarget, line string)

// Coordinator is the single entry point for scans.
type Coordinator struct {
	cfg      *config.Config
	runner   runner.Runner
	resolver project.Resolver
	notifier Notifier
	stderr   StderrFunc

	mu           sync.Mutex
	inflight     map[string]*Handle
	launchFailed bool

	wg sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithResolver sets the project resolver used for working directories.
func WithResolver(r project.Resolver) Option {
	return func(c *Coordinator) { c.resolver = r }
}

// WithNotifier sets the launch failure notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithStderr replaces the default stderr logger.
func WithStderr(fn StderrFunc) Option {
	return func(c *Coordinator) { c.stderr = fn }
}

func NewCoordinator(cfg *config.Config, r runner.Runner, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		runner:   r,
		resolver: project.NewMarkerResolver(),
		stderr: func(target types.ScanTarget, line string) {
			log.Printf("[analyzer] %s", line)
		},
		inflight: make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the configuration scans are built from.
func (c *Coordinator) Config() *config.Config { return c.cfg }

// Verify starts a scan of target and returns its handle. The sink receives
// every diagnostic in emission order followed by exactly one Done, also for
// disabled linting, launch failures, cancellation and timeouts.
func (c *Coordinator) Verify(ctx context.Context, target types.ScanTarget, sink Sink) *Handle {
	if !c.cfg.Lint.Enabled {
		h := newHandle(target, nil)
		h.finish(sink, Result{Target: target, Skipped: true})
		return h
	}

	scanCtx, cancel := context.WithCancelCause(ctx)
	h := newHandle(target, cancel)

	c.mu.Lock()
	prev := c.inflight[target.Key()]
	c.inflight[target.Key()] = h
	c.wg.Add(1)
	c.mu.Unlock()

	if prev != nil {
		debug.LogScan("superseding in-flight scan of %s\n", target)
		prev.cancel(lwerrors.ErrScanSuperseded)
	}

	go c.run(scanCtx, h, prev, sink)
	return h
}

func (c *Coordinator) run(ctx context.Context, h *Handle, prev *Handle, sink Sink) {
	defer c.wg.Done()
	start := time.Now()

	var res Result
	if prev != nil {
		// Even when superseded itself, a scan finishes only after its
		// predecessor, so Done of the latest handle implies no process of
		// this target is still running.
		<-prev.Done()
	}
	if ctx.Err() == nil {
		res = c.execute(ctx, h.target, sink)
	} else {
		classify(ctx, &res)
	}
	res.Target = h.target
	res.Duration = time.Since(start)

	c.mu.Lock()
	if c.inflight[h.target.Key()] == h {
		delete(c.inflight, h.target.Key())
	}
	c.mu.Unlock()

	// Release the context's resources; the cause is already recorded
	h.cancel(nil)

	debug.LogScan("finished %s: %d diagnostics, exit %d, canceled=%v timedOut=%v err=%v\n",
		h.target, res.Diagnostics, res.ExitCode, res.Canceled, res.TimedOut, res.Err)
	h.finish(sink, res)
}

// execute runs one analyzer process to completion under ctx.
func (c *Coordinator) execute(ctx context.Context, target types.ScanTarget, sink Sink) (res Result) {
	if timeout := c.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, lwerrors.ErrScanTimeout)
		defer cancel()
	}

	cmd := runner.BuildCommand(c.cfg, target, c.resolver)
	proc, err := c.runner.Start(ctx, cmd)
	if err != nil {
		var le *lwerrors.LaunchError
		if errors.As(err, &le) {
			c.launchFailure(le, sink)
			res.Err = le
			return res
		}
		if ctx.Err() == nil {
			res.Err = lwerrors.NewScanError(target.String(), err)
		}
		classify(ctx, &res)
		return res
	}
	c.launchSucceeded()

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		c.pumpStderr(target, proc.Stderr())
	}()

	p := parser.ForFormat(c.cfg.OutputFormat(), target)
	perr := p.Parse(ctx, proc.Stdout(), func(d types.Diagnostic) {
		if ctx.Err() != nil {
			return
		}
		res.Diagnostics++
		sink.Handle(d)
	})
	if perr != nil {
		// Unblock the process if parsing stopped early
		_, _ = io.Copy(io.Discard, proc.Stdout())
	}
	<-stderrDone

	code, werr := proc.Wait()
	res.ExitCode = code
	if ctx.Err() != nil {
		res.ExitCode = -1
		classify(ctx, &res)
		return res
	}
	if perr != nil {
		res.Err = lwerrors.NewScanError(target.String(), perr)
	} else if werr != nil {
		res.Err = lwerrors.NewScanError(target.String(), werr)
	}
	return res
}

// classify records why ctx ended, if it did.
func classify(ctx context.Context, res *Result) {
	if ctx.Err() == nil {
		return
	}
	cause := context.Cause(ctx)
	if errors.Is(cause, lwerrors.ErrScanTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		res.TimedOut = true
	} else {
		res.Canceled = true
	}
}

func (c *Coordinator) pumpStderr(target types.ScanTarget, r io.Reader) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if trimmed := trimEOL(line); trimmed != "" && c.stderr != nil {
				c.stderr(target, trimmed)
			}
		}
		if err != nil {
			return
		}
	}
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func (c *Coordinator) launchFailure(le *lwerrors.LaunchError, sink Sink) {
	c.mu.Lock()
	first := !c.launchFailed
	c.launchFailed = true
	c.mu.Unlock()

	if ls, ok := sink.(LaunchFailureSink); ok {
		ls.LaunchFailed(le)
	}
	if !first {
		debug.LogScan("suppressing repeated launch failure: %v\n", le)
		return
	}
	log.Printf("ERROR: %v (%s)", le, le.Hint())
	if c.notifier != nil {
		c.notifier.NotifyLaunchFailure(le)
	}
}

func (c *Coordinator) launchSucceeded() {
	c.mu.Lock()
	c.launchFailed = false
	c.mu.Unlock()
}

// ResetLaunchFailures re-arms the launch failure notification, e.g. on a
// scope change.
func (c *Coordinator) ResetLaunchFailures() {
	c.launchSucceeded()
}

// InFlight returns the number of scans currently running.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// CancelAll cancels every in-flight scan.
func (c *Coordinator) CancelAll() {
	c.mu.Lock()
	handles := make([]*Handle, 0, len(c.inflight))
	for _, h := range c.inflight {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

// Wait blocks until every scan started so far has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Shutdown cancels all scans and waits for them.
func (c *Coordinator) Shutdown() {
	c.CancelAll()
	c.Wait()
}
