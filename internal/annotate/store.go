package annotate

import (
	"errors"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/lintwatch/internal/debug"
	"github.com/standardbeagle/lintwatch/internal/types"
)

var (
	// ErrStaleGeneration rejects a replacement from a scan that has since
	// been superseded by a newer Begin.
	ErrStaleGeneration = errors.New("stale attachment generation")
	// ErrNotTracked rejects a replacement for a file that was removed.
	ErrNotTracked = errors.New("file not tracked")
)

// Store maps canonical file paths to their attachment sets.
//
// Lock order is store, then file set, then attachment, then text. Owner
// callbacks from detaching attachments arrive with no store lock held.
type Store struct {
	mu      sync.Mutex
	files   map[string]*fileSet
	nextGen uint64 // store-wide, so a removed and reopened file never reuses one
}

type fileSet struct {
	mu          sync.Mutex
	gen         uint64 // latest generation handed out by Begin
	applied     uint64 // generation of the current attachments
	attachments []*Attachment
	fingerprint uint64
	removed     bool
}

func NewStore() *Store {
	return &Store{files: make(map[string]*fileSet)}
}

// Canonical is the key a path is stored under.
func Canonical(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (s *Store) get(path string) *fileSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[path]
}

// Begin starts tracking path if needed and returns a generation for the scan
// about to run. Only the latest generation may Replace.
func (s *Store) Begin(path string) uint64 {
	key := Canonical(path)
	s.mu.Lock()
	fs := s.files[key]
	if fs == nil {
		fs = &fileSet{}
		s.files[key] = fs
	}
	s.nextGen++
	gen := s.nextGen
	s.mu.Unlock()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if gen > fs.gen {
		fs.gen = gen
	}
	return gen
}

// Replace swaps path's attachment set for one built from diags against text.
// The old set is released and the new one attached under the file lock, so
// Snapshot never observes a partial set. Duplicate diagnostics attach once;
// diagnostics whose position no longer exists in text are skipped.
func (s *Store) Replace(path string, gen uint64, diags []types.Diagnostic, text Text) (int, error) {
	key := Canonical(path)
	fs := s.get(key)
	if fs == nil {
		return 0, ErrNotTracked
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.removed {
		return 0, ErrNotTracked
	}
	if gen != fs.gen {
		return 0, ErrStaleGeneration
	}

	for _, a := range fs.attachments {
		a.release()
	}

	seen := make(map[uint64]struct{}, len(diags))
	next := make([]*Attachment, 0, len(diags))
	for _, d := range diags {
		a := New(d)
		k := a.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		if err := a.Attach(text, s.detachFunc(key, fs)); err != nil {
			debug.Log("ANNOTATE", "skipping diagnostic: %v\n", err)
			continue
		}
		seen[k] = struct{}{}
		next = append(next, a)
	}

	fs.attachments = next
	fs.applied = gen
	fs.fingerprint = fingerprint(next)
	return len(next), nil
}

func (s *Store) detachFunc(key string, fs *fileSet) func(*Attachment) {
	return func(a *Attachment) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		for i, cur := range fs.attachments {
			if cur == a {
				fs.attachments = append(fs.attachments[:i:i], fs.attachments[i+1:]...)
				fs.fingerprint = fingerprint(fs.attachments)
				debug.Log("ANNOTATE", "%s: attachment detached on edit, %d left\n", key, len(fs.attachments))
				return
			}
		}
	}
}

// Clear detaches path's attachments but keeps tracking it.
func (s *Store) Clear(path string) {
	fs := s.get(Canonical(path))
	if fs == nil {
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, a := range fs.attachments {
		a.release()
	}
	fs.attachments = nil
	fs.fingerprint = 0
}

// Remove detaches everything for path and stops tracking it. Pending
// replacements for path are rejected afterwards.
func (s *Store) Remove(path string) bool {
	key := Canonical(path)
	s.mu.Lock()
	fs := s.files[key]
	delete(s.files, key)
	s.mu.Unlock()
	if fs == nil {
		return false
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.removed = true
	for _, a := range fs.attachments {
		a.release()
	}
	fs.attachments = nil
	return true
}

// RemoveAll stops tracking every file.
func (s *Store) RemoveAll() {
	for _, p := range s.Paths() {
		s.Remove(p)
	}
}

// Snapshot returns path's current attachments in delivery order.
func (s *Store) Snapshot(path string) []*Attachment {
	fs := s.get(Canonical(path))
	if fs == nil {
		return nil
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]*Attachment(nil), fs.attachments...)
}

// Diagnostics returns the diagnostics of path's current attachments.
func (s *Store) Diagnostics(path string) []types.Diagnostic {
	snap := s.Snapshot(path)
	out := make([]types.Diagnostic, len(snap))
	for i, a := range snap {
		out[i] = a.Diagnostic()
	}
	return out
}

// Fingerprint hashes path's attachment set; equal sets hash equally.
func (s *Store) Fingerprint(path string) (uint64, bool) {
	fs := s.get(Canonical(path))
	if fs == nil {
		return 0, false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.fingerprint, true
}

// Tracked reports whether path has been begun and not removed.
func (s *Store) Tracked(path string) bool {
	return s.get(Canonical(path)) != nil
}

// Paths lists tracked files, sorted.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func fingerprint(set []*Attachment) uint64 {
	if len(set) == 0 {
		return 0
	}
	h := xxhash.New()
	var buf [8]byte
	for _, a := range set {
		k := a.Key()
		for i := range buf {
			buf[i] = byte(k >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
