package types

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiagnostic_NormalizesPosition(t *testing.T) {
	tests := []struct {
		name                string
		line, start, end    int
		wantLine, wantStart int
		wantEnd             int
	}{
		{"valid range", 3, 1, 5, 3, 1, 5},
		{"point diagnostic", 10, 4, 4, 10, 4, 4},
		{"missing end column", 10, 4, 0, 10, 4, 4},
		{"zero line", 0, 2, 3, 1, 2, 3},
		{"zero column", 7, 0, 0, 7, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDiagnostic("/a/b.js", tt.line, tt.start, tt.end, SeverityError, "  msg ")
			assert.Equal(t, tt.wantLine, d.Line)
			assert.Equal(t, tt.wantStart, d.StartCol)
			assert.Equal(t, tt.wantEnd, d.EndCol)
			assert.Equal(t, "msg", d.Message)
			require.NoError(t, d.Validate())
		})
	}
}

func TestDiagnostic_ValidateRejectsBrokenInvariants(t *testing.T) {
	assert.Error(t, Diagnostic{Line: 0, StartCol: 1, EndCol: 1}.Validate())
	assert.Error(t, Diagnostic{Line: 1, StartCol: 0, EndCol: 1}.Validate())
	assert.Error(t, Diagnostic{Line: 1, StartCol: 5, EndCol: 4}.Validate())
}

func TestParseSeverity(t *testing.T) {
	sev, ok := ParseSeverity("error")
	assert.True(t, ok)
	assert.Equal(t, SeverityError, sev)

	sev, ok = ParseSeverity("Warning")
	assert.True(t, ok)
	assert.Equal(t, SeverityWarning, sev)

	_, ok = ParseSeverity("Info")
	assert.False(t, ok)
}

func TestSeverityFromOrdinal(t *testing.T) {
	sev, ok := SeverityFromOrdinal(2)
	assert.True(t, ok)
	assert.Equal(t, SeverityError, sev)
	assert.True(t, sev.Reportable())

	sev, ok = SeverityFromOrdinal(0)
	assert.True(t, ok)
	assert.False(t, sev.Reportable())

	_, ok = SeverityFromOrdinal(7)
	assert.False(t, ok)
}

func TestScanTarget_Contains(t *testing.T) {
	root := t.TempDir()
	dir := DirectoryTarget(root)
	file := FileTarget(filepath.Join(root, "a.js"))

	assert.True(t, dir.Contains(filepath.Join(root, "src", "x.js")))
	assert.True(t, dir.Contains(root))
	assert.False(t, dir.Contains(filepath.Dir(root)))
	assert.False(t, dir.Contains(root+"-sibling"))

	assert.True(t, file.Contains(filepath.Join(root, "a.js")))
	assert.False(t, file.Contains(filepath.Join(root, "b.js")))
	assert.NotEqual(t, dir.Key(), DirectoryTarget(root+"x").Key())
}

func TestProblemFrom(t *testing.T) {
	p, ok := ProblemFrom(NewDiagnostic("/a/b.js", 3, 2, 2, SeverityWarning, "unused"))
	require.True(t, ok)
	assert.Equal(t, GroupWarning, p.Group)
	assert.Equal(t, 3, p.Line)
	assert.Equal(t, 2, p.Column)

	_, ok = ProblemFrom(NewDiagnostic("/a/b.js", 3, 2, 2, SeverityOff, "off"))
	assert.False(t, ok)
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCompact, f)

	_, err = ParseOutputFormat("sarif")
	assert.Error(t, err)
}
