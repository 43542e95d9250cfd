package display

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/standardbeagle/lintwatch/internal/types"
)

// ProblemFormatter renders problem lists for terminals and agents
type ProblemFormatter struct {
	options FormatterOptions
}

// FormatterOptions controls problem formatting
type FormatterOptions struct {
	Format    string // "text", "json", "compact"
	ShowGroup bool   // Show the error/warning group in text output
	Indent    string // Indentation string for text and json output
}

// NewProblemFormatter creates a new problem formatter
func NewProblemFormatter(options FormatterOptions) *ProblemFormatter {
	if options.Indent == "" {
		options.Indent = "  "
	}
	return &ProblemFormatter{options: options}
}

// Report is the json document for a problem list.
type Report struct {
	Problems []types.Problem `json:"problems"`
	Errors   int             `json:"errors"`
	Warnings int             `json:"warnings"`
}

// NewReport counts problems by group.
func NewReport(problems []types.Problem) Report {
	r := Report{Problems: problems}
	if r.Problems == nil {
		r.Problems = []types.Problem{}
	}
	for _, p := range problems {
		switch p.Group {
		case types.GroupError:
			r.Errors++
		case types.GroupWarning:
			r.Warnings++
		}
	}
	return r
}

// Format formats problems for display. Problems are expected in file, line,
// column order.
func (pf *ProblemFormatter) Format(problems []types.Problem) string {
	switch pf.options.Format {
	case "json":
		return pf.formatJSON(problems)
	case "compact":
		return pf.formatCompact(problems)
	default:
		return pf.formatText(problems)
	}
}

// formatText groups problems under a header per file
func (pf *ProblemFormatter) formatText(problems []types.Problem) string {
	if len(problems) == 0 {
		return "No problems found\n"
	}

	var sb strings.Builder
	file := ""
	for _, p := range problems {
		if p.File != file {
			if file != "" {
				sb.WriteString("\n")
			}
			file = p.File
			sb.WriteString(file)
			sb.WriteString("\n")
		}
		sb.WriteString(pf.options.Indent)
		sb.WriteString(fmt.Sprintf("%d:%d", p.Line, p.Column))
		if pf.options.ShowGroup {
			sb.WriteString(fmt.Sprintf("  %-7s", p.Group))
		}
		sb.WriteString("  ")
		sb.WriteString(p.Message)
		sb.WriteString("\n")
	}

	r := NewReport(problems)
	sb.WriteString("\n")
	sb.WriteString(Summary(r.Errors, r.Warnings))
	sb.WriteString("\n")
	return sb.String()
}

// formatCompact writes one analyzer-style line per problem
func (pf *ProblemFormatter) formatCompact(problems []types.Problem) string {
	var sb strings.Builder
	for _, p := range problems {
		sb.WriteString(fmt.Sprintf("%s: line %d, col %d, %s - %s\n",
			p.File, p.Line, p.Column, groupLabel(p.Group), p.Message))
	}
	return sb.String()
}

func (pf *ProblemFormatter) formatJSON(problems []types.Problem) string {
	data, err := json.MarshalIndent(NewReport(problems), "", pf.options.Indent)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data) + "\n"
}

// Summary renders counts the way the analyzer's own formatters do.
func Summary(errors, warnings int) string {
	total := errors + warnings
	if total == 0 {
		return "0 problems"
	}
	return fmt.Sprintf("%d %s (%d %s, %d %s)",
		total, plural(total, "problem"),
		errors, plural(errors, "error"),
		warnings, plural(warnings, "warning"))
}

func groupLabel(g types.ProblemGroup) string {
	switch g {
	case types.GroupError:
		return "Error"
	case types.GroupWarning:
		return "Warning"
	default:
		return string(g)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
