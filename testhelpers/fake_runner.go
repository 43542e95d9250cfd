package testhelpers

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
	"github.com/standardbeagle/lintwatch/internal/runner"
)

// FakeScript is the canned behaviour of one fake analyzer run.
type FakeScript struct {
	Stdout    []string      // lines written to stdout in order
	Stderr    []string      // lines written to stderr before stdout
	ExitCode  int           // returned from Wait
	LaunchErr bool          // Start fails with a not-found LaunchError
	LineDelay time.Duration // pause before each stdout line
	Block     bool          // after writing output, block until cancelled
	Gate      chan struct{} // when non-nil, output starts after Gate is closed
	KillDelay time.Duration // once cancelled, the process takes this long to exit
}

// FakeRunner replays FakeScripts instead of starting processes.
// Scripts are looked up by scan path: the file argument for file scans and
// the working directory for "." directory scans.
type FakeRunner struct {
	mu      sync.Mutex
	scripts map[string]FakeScript
	dflt    FakeScript
	calls   []runner.Command

	running    int
	maxRunning int
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{scripts: make(map[string]FakeScript)}
}

// On registers the script used for scans of path.
func (f *FakeRunner) On(path string, s FakeScript) *FakeRunner {
	f.mu.Lock()
	f.scripts[path] = s
	f.mu.Unlock()
	return f
}

// Default sets the script used when no path-specific one is registered.
func (f *FakeRunner) Default(s FakeScript) *FakeRunner {
	f.mu.Lock()
	f.dflt = s
	f.mu.Unlock()
	return f
}

// Calls returns every command passed to Start so far.
func (f *FakeRunner) Calls() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Command(nil), f.calls...)
}

// CallCount returns how many scans of path were started.
func (f *FakeRunner) CallCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if ScanPath(c) == path {
			n++
		}
	}
	return n
}

// MaxRunning returns the highest number of simultaneously running fakes.
func (f *FakeRunner) MaxRunning() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxRunning
}

// ScanPath returns the path a command scans.
func ScanPath(c runner.Command) string {
	if len(c.Args) == 0 {
		return c.Dir
	}
	last := c.Args[len(c.Args)-1]
	if last == "." {
		return c.Dir
	}
	return last
}

func (f *FakeRunner) Start(ctx context.Context, cmd runner.Command) (runner.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	script, ok := f.scripts[ScanPath(cmd)]
	if !ok {
		script = f.dflt
	}
	if script.LaunchErr {
		f.mu.Unlock()
		return nil, lwerrors.NewLaunchError(cmd.Path, cmd.Dir, exec.ErrNotFound)
	}
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	f.mu.Unlock()

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	p := &fakeProcess{stdout: outR, stderr: errR, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		defer func() {
			f.mu.Lock()
			f.running--
			f.mu.Unlock()
		}()

		canceled := false
		if script.Gate != nil {
			select {
			case <-script.Gate:
			case <-ctx.Done():
				canceled = true
			}
		}
		if !canceled {
			canceled = !writeLines(ctx, errW, script.Stderr, 0)
		}
		errW.Close()
		if !canceled {
			canceled = !writeLines(ctx, outW, script.Stdout, script.LineDelay)
		}
		if !canceled && script.Block {
			<-ctx.Done()
			canceled = true
		}
		if canceled && script.KillDelay > 0 {
			time.Sleep(script.KillDelay)
		}
		outW.Close()

		if canceled {
			p.code, p.err = -1, ctx.Err()
		} else {
			p.code = script.ExitCode
		}
	}()

	return p, nil
}

// writeLines reports false when ctx ended first.
func writeLines(ctx context.Context, w io.Writer, lines []string, delay time.Duration) bool {
	for _, line := range lines {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false
			}
		}
		if ctx.Err() != nil {
			return false
		}
		if _, err := io.WriteString(w, strings.TrimRight(line, "\n")+"\n"); err != nil {
			return false
		}
	}
	return ctx.Err() == nil
}

type fakeProcess struct {
	stdout io.Reader
	stderr io.Reader
	done   chan struct{}
	code   int
	err    error
}

func (p *fakeProcess) Stdout() io.Reader { return p.stdout }
func (p *fakeProcess) Stderr() io.Reader { return p.stderr }

func (p *fakeProcess) Wait() (int, error) {
	<-p.done
	return p.code, p.err
}
