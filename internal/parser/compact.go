package parser

import (
	"context"
	"io"
	"regexp"
	"strconv"

	"github.com/standardbeagle/lintwatch/internal/debug"
	"github.com/standardbeagle/lintwatch/internal/types"
)

// compactLine matches "<file>: line <N>, col <N>, <TYPE> - <message>".
var compactLine = regexp.MustCompile(`^(.*):\s+line\s+(\d+),\s+col\s+(\d+),\s+(\w*)\s+-\s?(.*)$`)

// CompactParser reads the line-oriented dialect. Lines that do not match,
// or carry an unknown TYPE, are dropped.
type CompactParser struct{}

func (p *CompactParser) Parse(ctx context.Context, r io.Reader, emit func(types.Diagnostic)) error {
	return eachLine(ctx, r, func(line string) {
		if d, ok := ParseCompactLine(line); ok {
			emit(d)
		}
	})
}

// ParseCompactLine parses a single compact record.
func ParseCompactLine(line string) (types.Diagnostic, bool) {
	m := compactLine.FindStringSubmatch(line)
	if m == nil {
		if line != "" {
			debug.LogParse("dropping non-matching line: %q\n", line)
		}
		return types.Diagnostic{}, false
	}
	lineNo, err := strconv.Atoi(m[2])
	if err != nil {
		debug.LogParse("line number out of range: %q\n", line)
		return types.Diagnostic{}, false
	}
	col, err := strconv.Atoi(m[3])
	if err != nil {
		debug.LogParse("column out of range: %q\n", line)
		return types.Diagnostic{}, false
	}
	sev, ok := types.ParseSeverity(m[4])
	if !ok {
		debug.LogParse("unknown type %q: %q\n", m[4], line)
		return types.Diagnostic{}, false
	}
	return types.NewDiagnostic(m[1], lineNo, col, col, sev, m[5]), true
}
