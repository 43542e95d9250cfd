package scheduler

import (
	"sort"
	"sync"

	"github.com/standardbeagle/lintwatch/internal/types"
)

// ProblemSink receives project-wide problem records, e.g. a task list.
// Started and Finished bracket each batch. SetProblems replaces everything
// previously set for file; an empty slice clears it.
type ProblemSink interface {
	Started()
	SetProblems(file string, problems []types.Problem)
	ClearAll()
	Finished()
}

// ProblemsFrom converts diagnostics to problem records, dropping
// non-reportable severities.
func ProblemsFrom(diags []types.Diagnostic) []types.Problem {
	out := make([]types.Problem, 0, len(diags))
	for _, d := range diags {
		if p, ok := types.ProblemFrom(d); ok {
			out = append(out, p)
		}
	}
	return out
}

// ProblemList is an in-memory ProblemSink.
type ProblemList struct {
	mu       sync.Mutex
	files    map[string][]types.Problem
	started  int
	finished int
	done     chan struct{}

	// OnFinished, when set, runs after each Finished.
	OnFinished func()
}

func NewProblemList() *ProblemList {
	return &ProblemList{files: make(map[string][]types.Problem), done: make(chan struct{})}
}

func (l *ProblemList) Started() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started++
	select {
	case <-l.done:
		l.done = make(chan struct{})
	default:
	}
}

func (l *ProblemList) SetProblems(file string, problems []types.Problem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(problems) == 0 {
		delete(l.files, file)
		return
	}
	l.files[file] = append([]types.Problem(nil), problems...)
}

func (l *ProblemList) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files = make(map[string][]types.Problem)
}

func (l *ProblemList) Finished() {
	l.mu.Lock()
	l.finished++
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	fn := l.OnFinished
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Done is closed by Finished and re-armed by Started.
func (l *ProblemList) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Counts returns how often Started and Finished were called.
func (l *ProblemList) Counts() (started, finished int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started, l.finished
}

// Problems returns every problem ordered by file, line and column.
func (l *ProblemList) Problems() []types.Problem {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.Problem
	for _, ps := range l.files {
		out = append(out, ps...)
	}
	SortProblems(out)
	return out
}

// ForFile returns the problems recorded for file.
func (l *ProblemList) ForFile(file string) []types.Problem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.Problem(nil), l.files[file]...)
}

// Files lists files that currently have problems, sorted.
func (l *ProblemList) Files() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.files))
	for f := range l.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Summary counts problems per group.
func (l *ProblemList) Summary() (errors, warnings int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ps := range l.files {
		for _, p := range ps {
			if p.Group == types.GroupError {
				errors++
			} else {
				warnings++
			}
		}
	}
	return errors, warnings
}

// SortProblems orders problems by file, line, then column.
func SortProblems(ps []types.Problem) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].File != ps[j].File {
			return ps[i].File < ps[j].File
		}
		if ps[i].Line != ps[j].Line {
			return ps[i].Line < ps[j].Line
		}
		return ps[i].Column < ps[j].Column
	})
}
