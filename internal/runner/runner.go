// Package runner launches the external analyzer.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/standardbeagle/lintwatch/internal/debug"
	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
)

// DefaultKillGrace bounds how long Wait blocks on output pipes after the
// process has been killed.
const DefaultKillGrace = 2 * time.Second

// Command is one fully resolved analyzer invocation.
type Command struct {
	Path string
	Dir  string // empty inherits the caller's working directory
	Args []string
}

func (c Command) String() string {
	s := c.Path
	if len(c.Args) > 0 {
		s += " " + strings.Join(c.Args, " ")
	}
	if c.Dir != "" {
		s += " (in " + c.Dir + ")"
	}
	return s
}

// Process is a started analyzer. Stdout and Stderr must be drained before
// calling Wait.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() (exitCode int, err error)
}

// Runner starts analyzer processes. Start returns *errors.LaunchError when
// the executable cannot be started. Cancelling ctx kills the process.
type Runner interface {
	Start(ctx context.Context, cmd Command) (Process, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	KillGrace time.Duration
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{KillGrace: DefaultKillGrace}
}

func (r *ExecRunner) Start(ctx context.Context, c Command) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = r.KillGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, lwerrors.NewLaunchError(c.Path, c.Dir, err)
	}
	debug.LogScan("started pid %d: %s\n", cmd.Process.Pid, c)

	return &execProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

// Wait returns the exit code. A non-zero exit is not an error: analyzers use
// it to report that diagnostics were found.
func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr) && exitErr.Exited():
		return exitErr.ExitCode(), nil
	default:
		return -1, err
	}
}
