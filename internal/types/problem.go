package types

// ProblemGroup is the task-list group a problem is filed under.
type ProblemGroup string

const (
	GroupError   ProblemGroup = "error"
	GroupWarning ProblemGroup = "warning"
)

// GroupFor maps a severity to its task-list group.
// Severities that are not reportable have no group.
func GroupFor(sev Severity) (ProblemGroup, bool) {
	switch sev {
	case SeverityError:
		return GroupError, true
	case SeverityWarning:
		return GroupWarning, true
	default:
		return "", false
	}
}

// Problem is a flat problem-list record derived from a Diagnostic.
type Problem struct {
	File    string       `json:"file"`
	Group   ProblemGroup `json:"group"`
	Message string       `json:"message"`
	Line    int          `json:"line"`
	Column  int          `json:"column"`
}

// ProblemFrom converts a diagnostic; ok is false for non-reportable severities.
func ProblemFrom(d Diagnostic) (Problem, bool) {
	group, ok := GroupFor(d.Severity)
	if !ok {
		return Problem{}, false
	}
	return Problem{
		File:    d.File,
		Group:   group,
		Message: d.Message,
		Line:    d.Line,
		Column:  d.StartCol,
	}, true
}
