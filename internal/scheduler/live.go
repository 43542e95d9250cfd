package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/standardbeagle/lintwatch/internal/annotate"
	"github.com/standardbeagle/lintwatch/internal/debug"
	"github.com/standardbeagle/lintwatch/internal/scan"
	"github.com/standardbeagle/lintwatch/internal/textbuf"
	"github.com/standardbeagle/lintwatch/internal/types"
	"github.com/standardbeagle/lintwatch/internal/watch"
)

// ErrNotEligible is returned when opening a file the gate rejects.
var ErrNotEligible = errors.New("file is not eligible for linting")

// LiveScheduler keeps the attachment sets of open files current.
// Each open file is re-verified on open and on change; only scans that ran to
// completion replace its attachments.
type LiveScheduler struct {
	coord   *scan.Coordinator
	store   *annotate.Store
	gate    *Gate
	watcher *watch.FileWatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	open    map[string]*openFile
	closed  bool
	pending sync.WaitGroup

	// OnUpdate, when set, runs after a file's attachment set was replaced.
	OnUpdate func(path string, attached int)
}

type openFile struct {
	path   string
	text   annotate.Text
	owned  bool // loaded from disk; reloaded on change
	handle *scan.Handle
}

// NewLiveScheduler wires a coordinator to an attachment store. A non-nil
// watcher is used to follow on-disk changes of opened files; the scheduler
// installs its callbacks and starts it.
func NewLiveScheduler(coord *scan.Coordinator, store *annotate.Store, gate *Gate, watcher *watch.FileWatcher) *LiveScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &LiveScheduler{
		coord:   coord,
		store:   store,
		gate:    gate,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
		open:    make(map[string]*openFile),
	}
	if watcher != nil {
		watcher.SetCallbacks(s.Changed, s.Changed, s.Deleted)
		watcher.Start()
	}
	return s
}

// Open starts tracking path with the caller's live text and scans it.
func (s *LiveScheduler) Open(path string, text annotate.Text) error {
	return s.open1(path, text, false)
}

// OpenFile loads path from disk and tracks it.
func (s *LiveScheduler) OpenFile(path string) error {
	key := annotate.Canonical(path)
	if !s.gate.Allows(key) {
		return fmt.Errorf("%s: %w", key, ErrNotEligible)
	}
	doc, err := textbuf.Load(key)
	if err != nil {
		return err
	}
	return s.open1(key, doc, true)
}

func (s *LiveScheduler) open1(path string, text annotate.Text, owned bool) error {
	key := annotate.Canonical(path)
	if !s.gate.Allows(key) {
		return fmt.Errorf("%s: %w", key, ErrNotEligible)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return context.Canceled
	}
	f, ok := s.open[key]
	if !ok {
		f = &openFile{path: key}
		s.open[key] = f
	}
	f.text, f.owned = text, owned
	s.mu.Unlock()

	if s.watcher != nil && !ok {
		if err := s.watcher.WatchFile(key); err != nil {
			debug.LogWatch("live: cannot watch %s: %v\n", key, err)
		}
	}
	s.rescan(key)
	return nil
}

// Changed re-verifies an open file. Files loaded from disk are reloaded
// first. Unknown paths are ignored.
func (s *LiveScheduler) Changed(path string) {
	key := annotate.Canonical(path)
	s.mu.Lock()
	f, ok := s.open[key]
	owned := ok && f.owned
	var text annotate.Text
	if ok {
		text = f.text
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if owned {
		if doc, isDoc := text.(*textbuf.Document); isDoc {
			data, err := os.ReadFile(key)
			if err != nil {
				debug.LogWatch("live: reload %s: %v\n", key, err)
				return
			}
			doc.SetText(string(data))
		}
	}
	s.rescan(key)
}

// Deleted clears path's attachments and stops tracking it.
func (s *LiveScheduler) Deleted(path string) {
	s.drop(annotate.Canonical(path))
}

// Close stops tracking path, as when the editor closes it.
func (s *LiveScheduler) Close(path string) {
	s.drop(annotate.Canonical(path))
}

func (s *LiveScheduler) drop(key string) {
	s.mu.Lock()
	f, ok := s.open[key]
	delete(s.open, key)
	s.mu.Unlock()
	if !ok {
		return
	}

	if f.handle != nil {
		f.handle.Cancel()
	}
	s.store.Remove(key)
	if s.watcher != nil {
		s.watcher.UnwatchFile(key)
	}
	debug.LogScan("live: stopped tracking %s\n", key)
}

// IsOpen reports whether path is tracked.
func (s *LiveScheduler) IsOpen(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.open[annotate.Canonical(path)]
	return ok
}

// Handle returns the latest scan handle for path.
func (s *LiveScheduler) Handle(path string) *scan.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.open[annotate.Canonical(path)]; ok {
		return f.handle
	}
	return nil
}

func (s *LiveScheduler) rescan(key string) {
	s.mu.Lock()
	f, ok := s.open[key]
	if !ok || s.closed {
		s.mu.Unlock()
		return
	}
	text := f.text
	gen := s.store.Begin(key)
	sink := &liveSink{sched: s, path: key, gen: gen, text: text}
	s.pending.Add(1)
	f.handle = s.coord.Verify(s.ctx, types.FileTarget(key), sink)
	s.mu.Unlock()
}

// Stop cancels every scan, waits for their completion and releases all
// attachments.
func (s *LiveScheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	paths := make([]string, 0, len(s.open))
	for p := range s.open {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	s.cancel()
	if s.watcher != nil {
		_ = s.watcher.Stop()
	}
	s.pending.Wait()
	for _, p := range paths {
		s.drop(p)
	}
}

// liveSink buffers one scan and swaps the file's attachment set when the
// scan completes normally.
type liveSink struct {
	sched *LiveScheduler
	path  string
	gen   uint64
	text  annotate.Text
	diags []types.Diagnostic
}

func (k *liveSink) Handle(d types.Diagnostic) {
	if d.InFile(k.path) {
		k.diags = append(k.diags, d)
	}
}

func (k *liveSink) Done(res scan.Result) {
	defer k.sched.pending.Done()

	if !res.Complete() {
		debug.LogScan("live: keeping attachments of %s (canceled=%v timedOut=%v err=%v)\n",
			k.path, res.Canceled, res.TimedOut, res.Err)
		return
	}
	n, err := k.sched.store.Replace(k.path, k.gen, k.diags, k.text)
	if err != nil {
		debug.LogScan("live: dropped result for %s: %v\n", k.path, err)
		return
	}
	if fn := k.sched.OnUpdate; fn != nil {
		fn(k.path, n)
	}
}
