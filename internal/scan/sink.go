package scan

import (
	"sync"
	"time"

	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
	"github.com/standardbeagle/lintwatch/internal/types"
)

// Sink receives one scan's output. Handle is called zero or more times in
// emission order, then Done exactly once. Calls never overlap.
type Sink interface {
	Handle(d types.Diagnostic)
	Done(res Result)
}

// LaunchFailureSink is implemented by sinks that want the launch failure
// delivered separately, before Done.
type LaunchFailureSink interface {
	LaunchFailed(err *lwerrors.LaunchError)
}

// Result summarizes a finished scan.
type Result struct {
	Target      types.ScanTarget
	Diagnostics int
	ExitCode    int
	Skipped     bool // linting disabled, no process was started
	Canceled    bool // superseded or cancelled before completion
	TimedOut    bool
	Err         error // *errors.LaunchError for launch failures
	Duration    time.Duration
}

// Complete reports whether the scan ran to the end and its diagnostics are
// the analyzer's full answer.
func (r Result) Complete() bool {
	return !r.Skipped && !r.Canceled && !r.TimedOut && r.Err == nil
}

// Failure explains why a scan did not complete. It is nil for complete and
// skipped scans.
func (r Result) Failure() error {
	switch {
	case r.Err != nil:
		return r.Err
	case r.TimedOut:
		return lwerrors.ErrScanTimeout
	case r.Canceled:
		return lwerrors.ErrScanCanceled
	}
	return nil
}

// SinkFunc adapts two functions to a Sink. Either may be nil.
type SinkFunc struct {
	OnDiagnostic func(types.Diagnostic)
	OnDone       func(Result)
}

func (s SinkFunc) Handle(d types.Diagnostic) {
	if s.OnDiagnostic != nil {
		s.OnDiagnostic(d)
	}
}

func (s SinkFunc) Done(res Result) {
	if s.OnDone != nil {
		s.OnDone(res)
	}
}

// Collector buffers a scan's diagnostics.
type Collector struct {
	mu     sync.Mutex
	diags  []types.Diagnostic
	result Result
	done   bool
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Handle(d types.Diagnostic) {
	c.mu.Lock()
	c.diags = append(c.diags, d)
	c.mu.Unlock()
}

func (c *Collector) Done(res Result) {
	c.mu.Lock()
	c.result = res
	c.done = true
	c.mu.Unlock()
}

// Diagnostics returns a copy of everything received so far.
func (c *Collector) Diagnostics() []types.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Diagnostic(nil), c.diags...)
}

// Result returns the completion result and whether Done has been called.
func (c *Collector) Result() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.done
}
