package parser

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/lintwatch/internal/debug"
	lwerrors "github.com/standardbeagle/lintwatch/internal/errors"
	"github.com/standardbeagle/lintwatch/internal/types"
)

type jsonFileResult struct {
	FilePath string        `json:"filePath"`
	Messages []jsonMessage `json:"messages"`
}

type jsonMessage struct {
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndColumn int    `json:"endColumn"`
	Message   string `json:"message"`
	Severity  int    `json:"severity"`
}

// JSONParser reads newline-delimited JSON arrays of per-file results. Only
// results for Target are emitted: a file target needs an exact path match,
// a directory target accepts any file underneath it. A line that fails to
// decode is logged and skipped.
type JSONParser struct {
	Target types.ScanTarget
}

func (p *JSONParser) Parse(ctx context.Context, r io.Reader, emit func(types.Diagnostic)) error {
	return eachLine(ctx, r, func(line string) {
		if strings.TrimSpace(line) == "" {
			return
		}
		var results []jsonFileResult
		if err := json.Unmarshal([]byte(line), &results); err != nil {
			log.Printf("WARNING: %v", lwerrors.NewParseError(string(types.FormatJSON), line, err))
			return
		}
		for _, res := range results {
			if !p.accepts(res.FilePath) {
				debug.LogParse("skipping result for %s outside %s\n", res.FilePath, p.Target)
				continue
			}
			for _, m := range res.Messages {
				sev, ok := types.SeverityFromOrdinal(m.Severity)
				if !ok || !sev.Reportable() {
					continue
				}
				emit(types.NewDiagnostic(res.FilePath, m.Line, m.Column, m.EndColumn, sev, m.Message))
			}
		}
	})
}

func (p *JSONParser) accepts(filePath string) bool {
	if filePath == "" {
		return false
	}
	return p.Target.Contains(filepath.Clean(filePath))
}
