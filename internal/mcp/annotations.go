package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/lintwatch/internal/annotate"
	"github.com/standardbeagle/lintwatch/internal/types"
	"github.com/standardbeagle/lintwatch/pkg/pathutil"
)

// AnnotationsParams are the annotations arguments.
type AnnotationsParams struct {
	Path    string `json:"path"`
	Refresh bool   `json:"refresh,omitempty"`
	Close   bool   `json:"close,omitempty"`
}

// Annotation is one attached diagnostic at its current position.
type Annotation struct {
	Line        int    `json:"line"`
	StartCol    int    `json:"start_col"`
	EndCol      int    `json:"end_col"`
	Group       string `json:"group"`
	Message     string `json:"message"`
	Marker      string `json:"marker"`
	Description string `json:"description"`
}

// AnnotationsResponse is the annotations result.
type AnnotationsResponse struct {
	File        string       `json:"file"`
	Open        bool         `json:"open"`
	Annotations []Annotation `json:"annotations"`
	Errors      int          `json:"errors"`
	Warnings    int          `json:"warnings"`
	Scanned     bool         `json:"scanned,omitempty"` // a scan ran for this call
	Skipped     bool         `json:"skipped,omitempty"`
	DurationMs  int64        `json:"duration_ms"`
}

func (s *Server) handleAnnotations(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("annotations", func() (*mcp.CallToolResult, error) {
		var p AnnotationsParams
		if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
			return createErrorResponse("annotations", fmt.Errorf("invalid parameters: %w", err))
		}
		if p.Path == "" {
			return createErrorResponse("annotations", fmt.Errorf("path is required"))
		}

		path := s.resolve(p.Path)
		resp := AnnotationsResponse{File: pathutil.ToRelative(path, s.displayRoot()), Annotations: []Annotation{}}
		if p.Close {
			s.live.Close(path)
			return createJSONResponse(resp)
		}

		start := time.Now()
		switch {
		case !s.live.IsOpen(path):
			if err := s.live.OpenFile(path); err != nil {
				return createErrorResponse("annotations", err)
			}
			resp.Scanned = true
		case p.Refresh:
			s.live.Changed(path)
			resp.Scanned = true
		}

		if resp.Scanned {
			if h := s.live.Handle(path); h != nil {
				res, err := h.Wait(ctx)
				switch {
				case err != nil:
					return createErrorResponse("annotations", err)
				case res.Skipped:
					resp.Skipped = true
				case !res.Complete():
					return createErrorResponse("annotations", res.Failure())
				}
			}
		}
		resp.DurationMs = time.Since(start).Milliseconds()
		resp.Open = s.live.IsOpen(path)

		for _, a := range s.store.Snapshot(path) {
			ann := toAnnotation(a)
			switch a.Severity() {
			case types.SeverityError:
				resp.Errors++
			case types.SeverityWarning:
				resp.Warnings++
			}
			resp.Annotations = append(resp.Annotations, ann)
		}
		s.diagnosticLogger.Printf("annotations %s: %d attached", path, len(resp.Annotations))
		return createJSONResponse(resp)
	})
}

func toAnnotation(a *annotate.Attachment) Annotation {
	line, startCol, endCol := a.Position()
	group, _ := types.GroupFor(a.Severity())
	return Annotation{
		Line:        line,
		StartCol:    startCol,
		EndCol:      endCol,
		Group:       string(group),
		Message:     a.Message(),
		Marker:      a.MarkerType(),
		Description: a.ShortDescription(),
	}
}
