package scan

import (
	"context"
	"sync"
	"time"

	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
	"github.com/standardbeagle/lintwatch/internal/types"
)

// Handle tracks one in-flight scan.
type Handle struct {
	target types.ScanTarget
	cancel context.CancelCauseFunc

	once   sync.Once
	done   chan struct{}
	result Result
}

func newHandle(target types.ScanTarget, cancel context.CancelCauseFunc) *Handle {
	if cancel == nil {
		cancel = func(error) {}
	}
	return &Handle{target: target, cancel: cancel, done: make(chan struct{})}
}

func (h *Handle) Target() types.ScanTarget { return h.target }

// Done is closed after the sink's Done has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the result once the scan has finished.
func (h *Handle) Result() (Result, bool) {
	select {
	case <-h.done:
		return h.result, true
	default:
		return Result{}, false
	}
}

// Cancel kills the analyzer and stops parsing. The sink still gets Done.
func (h *Handle) Cancel() {
	h.cancel(lwerrors.ErrScanCanceled)
}

// Await waits up to timeout for the scan. On expiry the scan is cancelled,
// its completion is awaited, and ErrScanTimeout is returned. A timeout <= 0
// waits indefinitely.
func (h *Handle) Await(timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		<-h.done
		return h.result, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.result, nil
	case <-timer.C:
		h.cancel(lwerrors.ErrScanTimeout)
		<-h.done
		if h.result.TimedOut {
			return h.result, lwerrors.ErrScanTimeout
		}
		return h.result, nil
	}
}

// Wait blocks until the scan finishes or ctx is done, in which case the scan
// is cancelled and ctx's error returned after completion.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		h.cancel(context.Cause(ctx))
		<-h.done
		return h.result, ctx.Err()
	}
}

func (h *Handle) finish(sink Sink, res Result) {
	h.once.Do(func() {
		h.result = res
		if sink != nil {
			sink.Done(res)
		}
		close(h.done)
	})
}
