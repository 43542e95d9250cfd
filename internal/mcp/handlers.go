package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/lintwatch/internal/scan"
	"github.com/standardbeagle/lintwatch/internal/scheduler"
	"github.com/standardbeagle/lintwatch/internal/types"
	"github.com/standardbeagle/lintwatch/pkg/pathutil"
)

var errNotEligible = scheduler.ErrNotEligible

// LintFileParams are the lint_file arguments.
type LintFileParams struct {
	Path string `json:"path"`
}

// LintProjectParams are the lint_project arguments.
type LintProjectParams struct {
	Root string `json:"root,omitempty"`
}

// ProblemsParams are the problems arguments.
type ProblemsParams struct {
	File string `json:"file,omitempty"`
}

// FileResponse is the lint_file result.
type FileResponse struct {
	File       string          `json:"file"`
	Problems   []types.Problem `json:"problems"`
	Errors     int             `json:"errors"`
	Warnings   int             `json:"warnings"`
	Ignored    bool            `json:"ignored,omitempty"`
	Skipped    bool            `json:"skipped,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// ProjectResponse is the lint_project result.
type ProjectResponse struct {
	Root        string          `json:"root"`
	Files       int             `json:"files"`
	Ignored     int             `json:"ignored"`
	Complete    int             `json:"complete"`
	TimedOut    int             `json:"timed_out"`
	Failed      int             `json:"failed"`
	Problems    []types.Problem `json:"problems"`
	Errors      int             `json:"errors"`
	Warnings    int             `json:"warnings"`
	LaunchError string          `json:"launch_error,omitempty"`
	Hint        string          `json:"hint,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

// ProblemsResponse is the problems result.
type ProblemsResponse struct {
	Root     string          `json:"root"`
	Problems []types.Problem `json:"problems"`
	Errors   int             `json:"errors"`
	Warnings int             `json:"warnings"`
	Pending  bool            `json:"pending,omitempty"` // a project batch is still running
}

func (s *Server) handleLintFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("lint_file", func() (*mcp.CallToolResult, error) {
		var p LintFileParams
		if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
			return createErrorResponse("lint_file", fmt.Errorf("invalid parameters: %w", err))
		}
		if p.Path == "" {
			return createErrorResponse("lint_file", fmt.Errorf("path is required"))
		}

		path := s.resolve(p.Path)
		info, err := os.Stat(path)
		if err != nil {
			return createErrorResponse("lint_file", err)
		}
		if info.IsDir() {
			return createErrorResponse("lint_file", fmt.Errorf("%s is a directory; use lint_project", p.Path))
		}
		if !s.gate.Eligible(path) {
			return createErrorResponse("lint_file", fmt.Errorf("%s: %w", p.Path, errNotEligible))
		}

		root := s.displayRoot()
		resp := FileResponse{File: pathutil.ToRelative(path, root), Problems: []types.Problem{}}
		if s.gate.IsIgnored(path) {
			resp.Ignored = true
			return createJSONResponse(resp)
		}

		start := time.Now()
		collector := scan.NewCollector()
		h := s.coord.Verify(ctx, types.FileTarget(path), collector)
		res, err := h.Wait(ctx)
		resp.DurationMs = time.Since(start).Milliseconds()
		switch {
		case err != nil:
			return createErrorResponse("lint_file", err)
		case res.Err != nil:
			return createErrorResponse("lint_file", res.Err)
		case res.Skipped:
			resp.Skipped = true
			return createJSONResponse(resp)
		case !res.Complete():
			return createErrorResponse("lint_file", res.Failure())
		}

		var diags []types.Diagnostic
		for _, d := range collector.Diagnostics() {
			if d.InFile(path) {
				diags = append(diags, d)
			}
		}
		problems := scheduler.ProblemsFrom(diags)
		s.problems.SetProblems(path, problems)

		resp.Problems = pathutil.ToRelativeProblems(problems, root)
		resp.Errors, resp.Warnings = countGroups(problems)
		s.diagnosticLogger.Printf("lint_file %s: %d problems in %dms", path, len(problems), resp.DurationMs)
		return createJSONResponse(resp)
	})
}

func (s *Server) handleLintProject(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("lint_project", func() (*mcp.CallToolResult, error) {
		var p LintProjectParams
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
				return createErrorResponse("lint_project", fmt.Errorf("invalid parameters: %w", err))
			}
		}

		root := s.resolve(p.Root)
		info, err := os.Stat(root)
		if err != nil {
			return createErrorResponse("lint_project", err)
		}
		if !info.IsDir() {
			return createErrorResponse("lint_project", fmt.Errorf("%s is not a directory; use lint_file", p.Root))
		}

		s.mu.Lock()
		s.scopeRoot = root
		s.launchErr = nil
		s.mu.Unlock()

		// Ignore files may have changed since the last scope
		s.gate.Invalidate(root)
		// Drop lint_file results recorded outside any scope
		s.problems.ClearAll()

		start := time.Now()
		run, err := s.batch.SetScope(s.ctx, scheduler.Scope{Roots: []string{root}}, s.problems)
		if err != nil {
			return createErrorResponse("lint_project", err)
		}
		stats, err := run.Wait(ctx)
		if err != nil {
			return createErrorResponse("lint_project", err)
		}

		problems := s.problems.Problems()
		resp := ProjectResponse{
			Root:       root,
			Files:      stats.Files,
			Ignored:    stats.Ignored,
			Complete:   stats.Complete,
			TimedOut:   stats.TimedOut,
			Failed:     stats.Failed,
			Problems:   pathutil.ToRelativeProblems(problems, root),
			DurationMs: time.Since(start).Milliseconds(),
		}
		if resp.Problems == nil {
			resp.Problems = []types.Problem{}
		}
		resp.Errors, resp.Warnings = countGroups(problems)

		s.mu.Lock()
		if le := s.launchErr; le != nil {
			resp.LaunchError = le.Error()
			resp.Hint = le.Hint()
		}
		s.mu.Unlock()

		s.diagnosticLogger.Printf("lint_project %s: %d files, %d problems in %dms",
			root, stats.Files, len(problems), resp.DurationMs)
		return createJSONResponse(resp)
	})
}

func (s *Server) handleProblems(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("problems", func() (*mcp.CallToolResult, error) {
		var p ProblemsParams
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
				return createErrorResponse("problems", fmt.Errorf("invalid parameters: %w", err))
			}
		}

		var problems []types.Problem
		if p.File != "" {
			problems = s.problems.ForFile(s.resolve(p.File))
		} else {
			problems = s.problems.Problems()
		}

		root := s.displayRoot()
		resp := ProblemsResponse{
			Root:     root,
			Problems: pathutil.ToRelativeProblems(problems, root),
		}
		if resp.Problems == nil {
			resp.Problems = []types.Problem{}
		}
		resp.Errors, resp.Warnings = countGroups(problems)

		started, finished := s.problems.Counts()
		resp.Pending = started > finished
		return createJSONResponse(resp)
	})
}

func countGroups(problems []types.Problem) (errors, warnings int) {
	for _, p := range problems {
		switch p.Group {
		case types.GroupError:
			errors++
		case types.GroupWarning:
			warnings++
		}
	}
	return errors, warnings
}
