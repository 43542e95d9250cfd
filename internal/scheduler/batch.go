package scheduler

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/lintwatch/internal/config"
	"github.com/standardbeagle/lintwatch/internal/debug"
	"github.com/standardbeagle/lintwatch/internal/scan"
	"github.com/standardbeagle/lintwatch/internal/types"
	"github.com/standardbeagle/lintwatch/internal/watch"
)

// Scope is the set of files a batch covers: every eligible file under Roots
// plus the explicitly listed Files.
type Scope struct {
	Roots []string
	Files []string
}

// Stats describes one batch run.
type Stats struct {
	Files    int // eligible files scanned
	Ignored  int // eligible by name but excluded by ignore rules
	Complete int
	TimedOut int
	Failed   int
}

// Run tracks the initial batch of a scope.
type Run struct {
	done  chan struct{}
	stats Stats
}

// Done is closed after the sink's Finished has returned.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the batch finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (Stats, error) {
	select {
	case <-r.done:
		return r.stats, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// BatchOptions tunes a BatchScheduler.
type BatchOptions struct {
	// AwaitTimeout bounds the wait for each file's scan. Zero uses the
	// configured scan timeout.
	AwaitTimeout time.Duration
	// Watch follows creates, changes and removals under the scope's roots
	// after the initial batch.
	Watch bool
}

// BatchScheduler maintains a project-wide problem list for one scope at a time.
type BatchScheduler struct {
	coord *scan.Coordinator
	cfg   *config.Config
	gate  *Gate
	opts  BatchOptions

	scopeMu sync.Mutex // serializes SetScope and Close

	mu      sync.Mutex
	current *scopeState
}

type scopeState struct {
	scope  Scope
	sink   ProblemSink
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex // guards closed, gens, handles
	closed  bool
	gens    map[string]uint64
	handles map[string]*scan.Handle
	nextGen uint64

	wg      sync.WaitGroup
	watcher *watch.FileWatcher
}

func NewBatchScheduler(coord *scan.Coordinator, gate *Gate, opts BatchOptions) *BatchScheduler {
	if opts.AwaitTimeout <= 0 {
		opts.AwaitTimeout = coord.Config().Timeout()
	}
	return &BatchScheduler{coord: coord, cfg: coord.Config(), gate: gate, opts: opts}
}

// SetScope tears down the previous scope and starts a batch for the new one.
// Teardown clears the previous sink, removes every watch and waits for the
// previous scope's scans, so nothing from it reaches the new scope. The sink
// gets Started now and Finished exactly once, after every file's scan.
func (b *BatchScheduler) SetScope(ctx context.Context, scope Scope, sink ProblemSink) (*Run, error) {
	b.scopeMu.Lock()
	defer b.scopeMu.Unlock()

	b.teardown()
	b.coord.ResetLaunchFailures()

	files, ignored := b.enumerate(scope)
	debug.LogScan("batch: %d files in scope, %d ignored\n", len(files), ignored)

	sctx, cancel := context.WithCancel(ctx)
	st := &scopeState{
		scope:   scope,
		sink:    sink,
		ctx:     sctx,
		cancel:  cancel,
		gens:    make(map[string]uint64),
		handles: make(map[string]*scan.Handle),
	}

	sink.Started()
	if b.opts.Watch && len(scope.Roots) > 0 {
		w, err := b.startWatcher(st)
		if err != nil {
			cancel()
			sink.Finished()
			return nil, err
		}
		st.watcher = w
	}

	b.mu.Lock()
	b.current = st
	b.mu.Unlock()

	run := &Run{done: make(chan struct{})}
	run.stats.Files = len(files)
	run.stats.Ignored = ignored

	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		defer close(run.done)

		var complete, timedOut, failed atomic.Int64
		g := new(errgroup.Group)
		g.SetLimit(max(b.cfg.Scan.MaxConcurrent, 1))
		for _, f := range files {
			f := f
			g.Go(func() error {
				res, err := b.scanFile(st, f)
				switch {
				case err != nil || res.TimedOut:
					timedOut.Add(1)
				case res.Complete():
					complete.Add(1)
				default:
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		run.stats.Complete = int(complete.Load())
		run.stats.TimedOut = int(timedOut.Load())
		run.stats.Failed = int(failed.Load())
		sink.Finished()
	}()

	return run, nil
}

// Close tears down the current scope.
func (b *BatchScheduler) Close() {
	b.scopeMu.Lock()
	defer b.scopeMu.Unlock()
	b.teardown()
}

// Rescan re-verifies one file of the current scope.
func (b *BatchScheduler) Rescan(path string) {
	b.mu.Lock()
	st := b.current
	b.mu.Unlock()
	if st != nil {
		b.rescan(st, path)
	}
}

func (b *BatchScheduler) teardown() {
	b.mu.Lock()
	st := b.current
	b.current = nil
	b.mu.Unlock()
	if st == nil {
		return
	}

	st.mu.Lock()
	st.closed = true
	st.mu.Unlock()

	st.cancel()
	if st.watcher != nil {
		_ = st.watcher.Stop()
	}
	st.wg.Wait()
	st.sink.ClearAll()
	debug.LogScan("batch: previous scope torn down\n")
}

// scanFile verifies path, waits for it within the await timeout and publishes
// its problems if the scan completed and is still the latest for path.
func (b *BatchScheduler) scanFile(st *scopeState, path string) (scan.Result, error) {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return scan.Result{Canceled: true}, nil
	}
	st.nextGen++
	gen := st.nextGen
	st.gens[path] = gen
	collector := scan.NewCollector()
	h := b.coord.Verify(st.ctx, types.FileTarget(path), collector)
	st.handles[path] = h
	st.mu.Unlock()

	res, err := h.Await(b.opts.AwaitTimeout)
	if err != nil {
		debug.LogScan("batch: %s timed out, no problems reported for it\n", path)
		return res, err
	}
	if !res.Complete() {
		return res, nil
	}

	var problems []types.Problem
	for _, d := range collector.Diagnostics() {
		if d.InFile(path) {
			if p, ok := types.ProblemFrom(d); ok {
				problems = append(problems, p)
			}
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed || st.gens[path] != gen {
		return res, nil
	}
	if st.handles[path] == h {
		delete(st.handles, path)
	}
	st.sink.SetProblems(path, problems)
	return res, nil
}

func (b *BatchScheduler) rescan(st *scopeState, path string) {
	path = filepath.Clean(path)
	if !b.gate.Allows(path) {
		return
	}
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	st.wg.Add(1)
	st.mu.Unlock()

	go func() {
		defer st.wg.Done()
		if _, err := b.scanFile(st, path); err != nil {
			debug.LogScan("batch: rescan of %s: %v\n", path, err)
		}
	}()
}

func (b *BatchScheduler) removed(st *scopeState, path string) {
	path = filepath.Clean(path)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	st.nextGen++
	st.gens[path] = st.nextGen
	if h := st.handles[path]; h != nil {
		h.Cancel()
		delete(st.handles, path)
	}
	st.sink.SetProblems(path, nil)
}

func (b *BatchScheduler) startWatcher(st *scopeState) (*watch.FileWatcher, error) {
	w, err := watch.NewFileWatcher(watch.Options{
		Debounce: b.cfg.WatchDebounce(),
		Ignore:   b.gate,
		Eligible: b.gate,
	})
	if err != nil {
		return nil, err
	}
	onChange := func(path string) { b.rescan(st, path) }
	w.SetCallbacks(onChange, onChange, func(path string) { b.removed(st, path) })
	for _, root := range st.scope.Roots {
		if err := w.WatchTree(root); err != nil {
			_ = w.Stop()
			return nil, err
		}
	}
	w.Start()
	return w, nil
}

// enumerate lists the eligible, non-ignored files of scope, sorted and
// deduplicated, and counts eligible files excluded by ignore rules.
func (b *BatchScheduler) enumerate(scope Scope) ([]string, int) {
	seen := make(map[string]struct{})
	var files []string
	ignored := 0

	add := func(path string) {
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		if !b.gate.Eligible(path) {
			return
		}
		if b.gate.IsIgnored(path) {
			ignored++
			return
		}
		files = append(files, path)
	}

	for _, root := range scope.Roots {
		root = absClean(root)
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root && skipDir(path, b.gate) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				add(path)
			}
			return nil
		})
	}
	for _, f := range scope.Files {
		add(absClean(f))
	}

	sort.Strings(files)
	return files, ignored
}

// skipDir prunes VCS directories and directories the ignore rules exclude.
// Files below a pruned directory are not counted as ignored.
func skipDir(path string, gate *Gate) bool {
	base := filepath.Base(path)
	for _, pattern := range watch.DefaultSkipDirs {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return gate.IsIgnored(path)
}

func absClean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
