// Package parser turns analyzer output into diagnostics.
//
// Both dialects consume the stream incrementally: emit is called as soon as a
// record has been read, and Parse returns once the stream is exhausted. The
// return of Parse is the completion signal.
package parser

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/standardbeagle/lintwatch/internal/types"
)

// Parser consumes one scan's stdout.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, emit func(types.Diagnostic)) error
}

// ForFormat returns the parser for format. The JSON dialect filters by target.
func ForFormat(format types.OutputFormat, target types.ScanTarget) Parser {
	if format == types.FormatJSON {
		return &JSONParser{Target: target}
	}
	return &CompactParser{}
}

// eachLine calls fn for every line of r, without a line length limit, until
// r is exhausted or ctx is done.
func eachLine(ctx context.Context, r io.Reader, fn func(line string)) error {
	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			fn(strings.TrimRight(line, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// A killed process closes its pipe; report cancellation instead
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}
