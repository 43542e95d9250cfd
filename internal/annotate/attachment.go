// Package annotate binds diagnostics to live, edit-tracking text ranges.
package annotate

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/lintwatch/internal/types"
)

// Text turns a 1-based line/column span into a live range within a file's
// current text.
type Text interface {
	Range(line, startCol, endCol int) (LiveRange, error)
}

// LiveRange follows text edits. OnChange callbacks fire, outside any lock
// held by the text, whenever the covered text is mutated.
type LiveRange interface {
	Line() int
	StartCol() int
	EndCol() int
	OnChange(fn func()) (unsubscribe func())
}

// State is an attachment's lifecycle position.
type State uint8

const (
	StateCreated State = iota
	StateAttached
	StateDetached // terminal
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAttached:
		return "attached"
	case StateDetached:
		return "detached"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

var ErrNotCreated = errors.New("attachment already attached or detached")

// Marker types used by the visual annotation layer.
const (
	MarkerError   = "lint-error"
	MarkerWarning = "lint-warning"
)

// Attachment binds one Diagnostic to one live range.
type Attachment struct {
	diag types.Diagnostic

	mu          sync.Mutex
	state       State
	rng         LiveRange
	unsubscribe func()
	onDetach    func(*Attachment)

	// Position at detach time, kept for display
	line, startCol, endCol int
}

// New returns an attachment in the created state.
func New(d types.Diagnostic) *Attachment {
	return &Attachment{
		diag:     d,
		line:     d.Line,
		startCol: d.StartCol,
		endCol:   d.EndCol,
	}
}

// Attach binds the attachment to its range in text. onDetach is called once
// when the attachment later detaches on its own or through Detach.
func (a *Attachment) Attach(text Text, onDetach func(*Attachment)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateCreated {
		return ErrNotCreated
	}
	rng, err := text.Range(a.diag.Line, a.diag.StartCol, a.diag.EndCol)
	if err != nil {
		return fmt.Errorf("attach %s:%d:%d: %w", a.diag.File, a.diag.Line, a.diag.StartCol, err)
	}
	a.rng = rng
	a.onDetach = onDetach
	a.unsubscribe = rng.OnChange(a.changed)
	a.state = StateAttached
	return nil
}

func (a *Attachment) changed() {
	a.detach(true)
}

// Detach moves the attachment to detached and notifies its owner. Calls
// after the first are no-ops.
func (a *Attachment) Detach() bool {
	return a.detach(true)
}

// release detaches without notifying the owner; the owner is the caller.
func (a *Attachment) release() bool {
	return a.detach(false)
}

func (a *Attachment) detach(notify bool) bool {
	a.mu.Lock()
	switch a.state {
	case StateDetached:
		a.mu.Unlock()
		return false
	case StateCreated:
		a.state = StateDetached
		a.mu.Unlock()
		return false
	}

	a.state = StateDetached
	a.line, a.startCol, a.endCol = a.rng.Line(), a.rng.StartCol(), a.rng.EndCol()
	unsubscribe, owner := a.unsubscribe, a.onDetach
	a.unsubscribe, a.onDetach = nil, nil
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if notify && owner != nil {
		owner(a)
	}
	return true
}

func (a *Attachment) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attachment) Attached() bool {
	return a.State() == StateAttached
}

func (a *Attachment) Diagnostic() types.Diagnostic { return a.diag }
func (a *Attachment) Severity() types.Severity     { return a.diag.Severity }
func (a *Attachment) Message() string              { return a.diag.Message }

// Position returns the current range position while attached and the last
// known position otherwise.
func (a *Attachment) Position() (line, startCol, endCol int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateAttached {
		return a.rng.Line(), a.rng.StartCol(), a.rng.EndCol()
	}
	return a.line, a.startCol, a.endCol
}

// ShortDescription is the hover text shown for the annotation.
func (a *Attachment) ShortDescription() string {
	return a.diag.Message + " (Column: " + strconv.Itoa(a.diag.StartCol) + ")"
}

func (a *Attachment) MarkerType() string {
	if a.diag.Severity == types.SeverityError {
		return MarkerError
	}
	return MarkerWarning
}

// Equal compares reported line, column range and message.
func (a *Attachment) Equal(b *Attachment) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.diag.Line == b.diag.Line &&
		a.diag.StartCol == b.diag.StartCol &&
		a.diag.EndCol == b.diag.EndCol &&
		a.diag.Message == b.diag.Message
}

// Key fingerprints the fields Equal compares.
func (a *Attachment) Key() uint64 {
	return diagnosticKey(a.diag)
}

func diagnosticKey(d types.Diagnostic) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(strconv.Itoa(d.Line))
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(strconv.Itoa(d.StartCol))
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(strconv.Itoa(d.EndCol))
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(d.Message)
	return h.Sum64()
}

func (a *Attachment) String() string {
	line, col, _ := a.Position()
	return fmt.Sprintf("%s:%d:%d %s [%s]", a.diag.File, line, col, a.ShortDescription(), a.State())
}
