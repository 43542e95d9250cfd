// Package watch reports file creation, change and removal under watched
// project trees and for individually watched files.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/lintwatch/internal/debug"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventWrite:
		return "write"
	case EventRemove:
		return "remove"
	default:
		return fmt.Sprintf("EventType(%d)", int(e))
	}
}

// PathFilter excludes paths, e.g. an ignore rule set.
type PathFilter interface {
	IsIgnored(path string) bool
}

// Eligibility selects the files worth reporting, e.g. the lint allow-list.
type Eligibility interface {
	Eligible(path string) bool
}

// DefaultSkipDirs are never descended into, whatever the ignore rules say.
var DefaultSkipDirs = []string{".git", ".hg", ".svn"}

// Options configures a FileWatcher. Nil filters accept everything.
type Options struct {
	Debounce time.Duration
	Ignore   PathFilter
	Eligible Eligibility
	SkipDirs []string // doublestar patterns matched against directory base names
}

// FileWatcher monitors watched trees and files and delivers debounced events
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	opts      Options
	debouncer *eventDebouncer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	trees   map[string]struct{}
	files   map[string]struct{}
	started bool
	stopped bool

	// Callbacks for handling file events
	onFileChanged func(path string)
	onFileCreated func(path string)
	onFileRemoved func(path string)
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(opts Options) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = DefaultSkipDirs
	}

	ctx, cancel := context.WithCancel(context.Background())
	fw := &FileWatcher{
		watcher: watcher,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		trees:   make(map[string]struct{}),
		files:   make(map[string]struct{}),
	}
	fw.debouncer = newEventDebouncer(opts.Debounce, fw)
	return fw, nil
}

// SetCallbacks sets the callbacks for handling file events. Set them before Start.
func (fw *FileWatcher) SetCallbacks(
	onFileChanged func(path string),
	onFileCreated func(path string),
	onFileRemoved func(path string),
) {
	fw.onFileChanged = onFileChanged
	fw.onFileCreated = onFileCreated
	fw.onFileRemoved = onFileRemoved
}

// Start begins processing events
func (fw *FileWatcher) Start() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.started || fw.stopped {
		return
	}
	fw.started = true

	fw.wg.Add(1)
	go fw.processEvents()
	debug.LogWatch("file watcher started\n")
}

// Stop stops the file watcher. Pending events are dropped and no callback
// runs after Stop returns.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	fw.mu.Unlock()

	fw.cancel()
	err := fw.watcher.Close()
	if err != nil {
		log.Printf("Error closing fsnotify watcher: %v", err)
	}
	fw.wg.Wait()
	fw.debouncer.stop()

	debug.LogWatch("file watcher stopped\n")
	return err
}

// WatchTree watches root and every directory below it that is not ignored.
// New directories are picked up as they appear.
func (fw *FileWatcher) WatchTree(root string) error {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("watch tree %s: not a directory", root)
	}

	debug.LogWatch("watching tree %s\n", root)
	fw.mu.Lock()
	fw.trees[root] = struct{}{}
	fw.mu.Unlock()

	if err := fw.addWatches(root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}
	return nil
}

// WatchFile watches a single file through its parent directory.
func (fw *FileWatcher) WatchFile(path string) error {
	path = filepath.Clean(path)
	fw.mu.Lock()
	fw.files[path] = struct{}{}
	fw.mu.Unlock()

	if err := fw.watcher.Add(filepath.Dir(path)); err != nil {
		fw.mu.Lock()
		delete(fw.files, path)
		fw.mu.Unlock()
		return fmt.Errorf("watch %s: %w", path, err)
	}
	debug.LogWatch("watching file %s\n", path)
	return nil
}

// UnwatchFile stops reporting events for path. The parent directory watch is
// removed when nothing else needs it.
func (fw *FileWatcher) UnwatchFile(path string) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	fw.mu.Lock()
	delete(fw.files, path)
	needed := fw.underTree(dir)
	for f := range fw.files {
		if filepath.Dir(f) == dir {
			needed = true
			break
		}
	}
	fw.mu.Unlock()

	if !needed {
		_ = fw.watcher.Remove(dir)
	}
}

// WatchedFiles returns how many individual files are watched.
func (fw *FileWatcher) WatchedFiles() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return len(fw.files)
}

// addWatches recursively adds watches to all relevant directories
func (fw *FileWatcher) addWatches(root string) error {
	// Track visited directories to prevent infinite loops from symlink cycles
	visitedDirs := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if !info.IsDir() {
			return nil
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visitedDirs[realPath] {
			return filepath.SkipDir
		}
		visitedDirs[realPath] = true

		if path != root && fw.shouldIgnoreDirectory(path) {
			return filepath.SkipDir
		}

		if err := fw.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

func (fw *FileWatcher) shouldIgnoreDirectory(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range fw.opts.SkipDirs {
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
	}
	return fw.opts.Ignore != nil && fw.opts.Ignore.IsIgnored(path)
}

// underTree reports whether path is inside a watched tree. Caller holds fw.mu.
func (fw *FileWatcher) underTree(path string) bool {
	for root := range fw.trees {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// wanted reports whether events for the file at path should be delivered.
func (fw *FileWatcher) wanted(path string) bool {
	fw.mu.Lock()
	_, single := fw.files[path]
	inTree := fw.underTree(path)
	fw.mu.Unlock()

	if !single && !inTree {
		return false
	}
	if fw.opts.Ignore != nil && fw.opts.Ignore.IsIgnored(path) {
		return false
	}
	return fw.opts.Eligible == nil || fw.opts.Eligible.Eligible(path)
}

// processEvents processes file system events from fsnotify
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}

// handleEvent handles a single file system event
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	debug.LogWatch("received %v for %s\n", event.Op, path)

	info, err := os.Stat(path)
	if err != nil {
		// Removed or renamed away
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && fw.wanted(path) {
			fw.debouncer.addEvent(path, EventRemove)
		}
		return
	}

	if info.IsDir() {
		fw.handleDirectoryEvent(event, path)
		return
	}
	if !fw.wanted(path) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		fw.debouncer.addEvent(path, EventCreate)
	case event.Op&(fsnotify.Write|fsnotify.Rename) != 0:
		fw.debouncer.addEvent(path, EventWrite)
	}
}

// handleDirectoryEvent starts watching directories created inside a tree.
// Files created together with the directory are reported as creates.
func (fw *FileWatcher) handleDirectoryEvent(event fsnotify.Event, path string) {
	if event.Op&fsnotify.Create == 0 {
		return
	}
	fw.mu.Lock()
	inTree := fw.underTree(path)
	fw.mu.Unlock()
	if !inTree || fw.shouldIgnoreDirectory(path) {
		return
	}

	if err := fw.addWatches(path); err != nil {
		log.Printf("Warning: failed to add watch for new directory %s: %v", path, err)
		return
	}
	_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != path && fw.shouldIgnoreDirectory(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if fw.wanted(p) {
			fw.debouncer.addEvent(p, EventCreate)
		}
		return nil
	})
}

// eventDebouncer batches file events to avoid excessive processing
type eventDebouncer struct {
	events   map[string]EventType
	mutex    sync.Mutex
	debounce time.Duration
	timer    *time.Timer
	closed   bool

	flushMu sync.Mutex // held while callbacks run
	fw      *FileWatcher
}

func newEventDebouncer(debounce time.Duration, fw *FileWatcher) *eventDebouncer {
	return &eventDebouncer{
		events:   make(map[string]EventType),
		debounce: debounce,
		fw:       fw,
	}
}

// addEvent adds a file event to be debounced
func (d *eventDebouncer) addEvent(path string, eventType EventType) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.closed {
		return
	}

	// A create followed by writes is still a create
	if prev, ok := d.events[path]; ok && prev == EventCreate && eventType == EventWrite {
		eventType = EventCreate
	}
	d.events[path] = eventType

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

// stop drops pending events and waits for a running flush.
func (d *eventDebouncer) stop() {
	d.mutex.Lock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.events = make(map[string]EventType)
	d.mutex.Unlock()

	d.flushMu.Lock()
	d.flushMu.Unlock() //nolint:staticcheck // wait for an in-progress flush
}

// flush processes all accumulated events
func (d *eventDebouncer) flush() {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return
	}
	events := d.events
	d.events = make(map[string]EventType)
	d.mutex.Unlock()

	if len(events) == 0 {
		return
	}
	debug.LogWatch("processing %d debounced file events\n", len(events))

	var creates, removes, changes []string
	for path, eventType := range events {
		switch eventType {
		case EventCreate:
			creates = append(creates, path)
		case EventRemove:
			removes = append(removes, path)
		case EventWrite:
			changes = append(changes, path)
		}
	}

	fw := d.fw
	// Process removals first
	for _, path := range removes {
		if fw.onFileRemoved != nil {
			fw.onFileRemoved(path)
		}
	}
	for _, path := range changes {
		if fw.onFileChanged != nil {
			fw.onFileChanged(path)
		}
	}
	// Process creates last
	for _, path := range creates {
		if fw.onFileCreated != nil {
			fw.onFileCreated(path)
		}
	}
}
