// Package textbuf is a line-addressed, in-memory text buffer whose ranges
// follow edits. It stands in for an editor's document model.
package textbuf

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/standardbeagle/lintwatch/internal/annotate"
)

// Document holds one file's text as lines.
type Document struct {
	mu     sync.Mutex
	path   string
	lines  []string
	ranges map[*liveRange]struct{}
}

// NewDocument splits content into lines. A trailing newline does not add an
// empty last line.
func NewDocument(path, content string) *Document {
	return &Document{
		path:   path,
		lines:  splitLines(content),
		ranges: make(map[*liveRange]struct{}),
	}
}

// Load reads path from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewDocument(path, string(data)), nil
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return []string{""}
	}
	return strings.Split(content, "\n")
}

func (d *Document) Path() string { return d.path }

func (d *Document) LineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lines)
}

// Line returns the 1-based line n.
func (d *Document) Line(n int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n < 1 || n > len(d.lines) {
		return "", false
	}
	return d.lines[n-1], true
}

func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.lines, "\n") + "\n"
}

// Range returns a live range on line. Columns past the end of the line are
// clamped to just after its last character.
func (d *Document) Range(line, startCol, endCol int) (annotate.LiveRange, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if line < 1 || line > len(d.lines) {
		return nil, fmt.Errorf("line %d out of range 1..%d", line, len(d.lines))
	}
	limit := len(d.lines[line-1]) + 1
	startCol = clamp(startCol, 1, limit)
	endCol = clamp(endCol, startCol, limit)

	r := &liveRange{doc: d, line: line, start: startCol, end: endCol, listeners: make(map[int]func())}
	d.ranges[r] = struct{}{}
	return r, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ReplaceLine overwrites line n. Ranges on that line change.
func (d *Document) ReplaceLine(n int, text string) error {
	d.mu.Lock()
	if n < 1 || n > len(d.lines) {
		d.mu.Unlock()
		return fmt.Errorf("line %d out of range 1..%d", n, len(d.lines))
	}
	d.lines[n-1] = text
	fire := d.collect(func(r *liveRange) bool { return r.line == n })
	d.mu.Unlock()

	notify(fire)
	return nil
}

// InsertText inserts s into line n before column col. Ranges spanning col
// change; ranges starting after it shift right.
func (d *Document) InsertText(n, col int, s string) error {
	d.mu.Lock()
	if n < 1 || n > len(d.lines) {
		d.mu.Unlock()
		return fmt.Errorf("line %d out of range 1..%d", n, len(d.lines))
	}
	line := d.lines[n-1]
	col = clamp(col, 1, len(line)+1)
	d.lines[n-1] = line[:col-1] + s + line[col-1:]

	fire := d.collect(func(r *liveRange) bool {
		if r.line != n {
			return false
		}
		if r.start > col {
			r.start += len(s)
			r.end += len(s)
			return false
		}
		return r.end >= col
	})
	d.mu.Unlock()

	notify(fire)
	return nil
}

// InsertLines inserts lines before line at; at == LineCount()+1 appends.
// Ranges at or below the insertion point move down without changing.
func (d *Document) InsertLines(at int, lines ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if at < 1 || at > len(d.lines)+1 {
		return fmt.Errorf("insert position %d out of range 1..%d", at, len(d.lines)+1)
	}
	if len(lines) == 0 {
		return nil
	}
	next := make([]string, 0, len(d.lines)+len(lines))
	next = append(next, d.lines[:at-1]...)
	next = append(next, lines...)
	next = append(next, d.lines[at-1:]...)
	d.lines = next

	for r := range d.ranges {
		if r.line >= at {
			r.line += len(lines)
		}
	}
	return nil
}

// DeleteLines removes lines from..to inclusive. Ranges on removed lines
// change; ranges below move up.
func (d *Document) DeleteLines(from, to int) error {
	d.mu.Lock()
	if from < 1 || to < from || to > len(d.lines) {
		d.mu.Unlock()
		return fmt.Errorf("delete range %d..%d out of range 1..%d", from, to, len(d.lines))
	}
	count := to - from + 1
	d.lines = append(d.lines[:from-1:from-1], d.lines[to:]...)
	if len(d.lines) == 0 {
		d.lines = []string{""}
	}

	fire := d.collect(func(r *liveRange) bool {
		switch {
		case r.line > to:
			r.line -= count
			return false
		case r.line >= from:
			r.line = clamp(from, 1, len(d.lines))
			r.start, r.end = 1, 1
			return true
		default:
			return false
		}
	})
	d.mu.Unlock()

	notify(fire)
	return nil
}

// SetText replaces the whole document. Every range changes.
func (d *Document) SetText(content string) {
	d.mu.Lock()
	d.lines = splitLines(content)
	fire := d.collect(func(r *liveRange) bool {
		r.line = clamp(r.line, 1, len(d.lines))
		return true
	})
	d.mu.Unlock()

	notify(fire)
}

// collect applies touch to every range and gathers the listeners of ranges
// it reports as changed. Caller holds d.mu.
func (d *Document) collect(touch func(r *liveRange) bool) []func() {
	var fire []func()
	for r := range d.ranges {
		if touch(r) {
			for _, fn := range r.listeners {
				fire = append(fire, fn)
			}
		}
	}
	return fire
}

func notify(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// Ranges returns the number of live ranges still tracked.
func (d *Document) Ranges() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ranges)
}

type liveRange struct {
	doc        *Document
	line       int
	start, end int
	listeners  map[int]func()
	nextID     int
}

func (r *liveRange) Line() int {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()
	return r.line
}

func (r *liveRange) StartCol() int {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()
	return r.start
}

func (r *liveRange) EndCol() int {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()
	return r.end
}

// OnChange registers fn. When the last listener unsubscribes the range is
// no longer tracked.
func (r *liveRange) OnChange(fn func()) func() {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.doc.mu.Lock()
			defer r.doc.mu.Unlock()
			delete(r.listeners, id)
			if len(r.listeners) == 0 {
				delete(r.doc.ranges, r)
			}
		})
	}
}
