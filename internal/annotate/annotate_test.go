package annotate_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lintwatch/internal/annotate"
	"github.com/standardbeagle/lintwatch/internal/textbuf"
	"github.com/standardbeagle/lintwatch/internal/types"
)

const file = "/project/src/app.js"

func diag(line, col int, sev types.Severity, msg string) types.Diagnostic {
	return types.NewDiagnostic(file, line, col, col, sev, msg)
}

func TestAttachment_Lifecycle(t *testing.T) {
	doc := textbuf.NewDocument(file, "let a = 1\nconsole.log(a)\n")
	a := annotate.New(diag(2, 1, types.SeverityWarning, "Unexpected console statement."))
	assert.Equal(t, annotate.StateCreated, a.State())

	notified := 0
	require.NoError(t, a.Attach(doc, func(*annotate.Attachment) { notified++ }))
	assert.Equal(t, annotate.StateAttached, a.State())
	assert.ErrorIs(t, a.Attach(doc, nil), annotate.ErrNotCreated)

	// Editing the range detaches exactly once
	require.NoError(t, doc.ReplaceLine(2, "// removed"))
	assert.Equal(t, annotate.StateDetached, a.State())
	assert.Equal(t, 1, notified)

	require.NoError(t, doc.ReplaceLine(2, "again"))
	assert.False(t, a.Detach())
	assert.Equal(t, 1, notified)
	assert.Equal(t, 0, doc.Ranges(), "detached attachment unsubscribes")
}

func TestAttachment_KeepsPositionAfterDetach(t *testing.T) {
	doc := textbuf.NewDocument(file, "a\nb\nc\n")
	a := annotate.New(diag(3, 1, types.SeverityError, "x"))
	require.NoError(t, a.Attach(doc, nil))

	require.NoError(t, doc.InsertLines(1, "new"))
	line, _, _ := a.Position()
	assert.Equal(t, 4, line, "live position follows inserts")

	assert.True(t, a.Detach())
	line, col, _ := a.Position()
	assert.Equal(t, 4, line)
	assert.Equal(t, 1, col)
}

func TestAttachment_AttachOutOfRange(t *testing.T) {
	doc := textbuf.NewDocument(file, "a\n")
	a := annotate.New(diag(5, 1, types.SeverityError, "x"))
	assert.Error(t, a.Attach(doc, nil))
	assert.Equal(t, annotate.StateCreated, a.State())
}

func TestAttachment_DisplayAndEquality(t *testing.T) {
	a := annotate.New(diag(2, 7, types.SeverityError, "Missing semicolon."))
	b := annotate.New(diag(2, 7, types.SeverityWarning, "Missing semicolon."))
	c := annotate.New(diag(2, 8, types.SeverityError, "Missing semicolon."))

	assert.Equal(t, "Missing semicolon. (Column: 7)", a.ShortDescription())
	assert.Equal(t, annotate.MarkerError, a.MarkerType())
	assert.Equal(t, annotate.MarkerWarning, b.MarkerType())

	assert.True(t, a.Equal(b), "severity is not part of equality")
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestStore_ReplaceIsFullReplacement(t *testing.T) {
	doc := textbuf.NewDocument(file, "a\nb\nc\n")
	s := annotate.NewStore()

	gen := s.Begin(file)
	n, err := s.Replace(file, gen, []types.Diagnostic{
		diag(1, 1, types.SeverityError, "first"),
		diag(2, 1, types.SeverityWarning, "second"),
	}, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	old := s.Snapshot(file)

	gen = s.Begin(file)
	_, err = s.Replace(file, gen, []types.Diagnostic{diag(3, 1, types.SeverityError, "third")}, doc)
	require.NoError(t, err)

	for _, a := range old {
		assert.Equal(t, annotate.StateDetached, a.State())
	}
	got := s.Diagnostics(file)
	require.Len(t, got, 1)
	assert.Equal(t, "third", got[0].Message)
	assert.Equal(t, 1, doc.Ranges())
}

func TestStore_RescanWithSameResultIsEqual(t *testing.T) {
	doc := textbuf.NewDocument(file, "a\nb\n")
	s := annotate.NewStore()
	diags := []types.Diagnostic{
		diag(1, 1, types.SeverityError, "x"),
		diag(2, 1, types.SeverityWarning, "y"),
	}

	_, err := s.Replace(file, s.Begin(file), diags, doc)
	require.NoError(t, err)
	before := s.Snapshot(file)
	fp1, _ := s.Fingerprint(file)

	_, err = s.Replace(file, s.Begin(file), diags, doc)
	require.NoError(t, err)
	after := s.Snapshot(file)
	fp2, _ := s.Fingerprint(file)

	assert.Equal(t, fp1, fp2)
	require.Len(t, after, len(before))
	for i := range after {
		assert.True(t, after[i].Equal(before[i]))
		assert.NotSame(t, after[i], before[i])
		assert.True(t, after[i].Attached())
		assert.False(t, before[i].Attached(), "no attachment left on the stale set")
	}
}

func TestStore_EditRemovesFromSet(t *testing.T) {
	doc := textbuf.NewDocument(file, "a\nb\n")
	s := annotate.NewStore()
	_, err := s.Replace(file, s.Begin(file), []types.Diagnostic{
		diag(1, 1, types.SeverityError, "x"),
		diag(2, 1, types.SeverityError, "y"),
	}, doc)
	require.NoError(t, err)
	fpBefore, _ := s.Fingerprint(file)

	require.NoError(t, doc.ReplaceLine(1, "edited"))
	require.NoError(t, doc.ReplaceLine(1, "edited twice"))

	got := s.Diagnostics(file)
	require.Len(t, got, 1)
	assert.Equal(t, "y", got[0].Message)
	fpAfter, _ := s.Fingerprint(file)
	assert.NotEqual(t, fpBefore, fpAfter)
}

func TestStore_RejectsStaleGeneration(t *testing.T) {
	doc := textbuf.NewDocument(file, "a\n")
	s := annotate.NewStore()

	stale := s.Begin(file)
	fresh := s.Begin(file)

	_, err := s.Replace(file, stale, []types.Diagnostic{diag(1, 1, types.SeverityError, "stale")}, doc)
	assert.ErrorIs(t, err, annotate.ErrStaleGeneration)

	_, err = s.Replace(file, fresh, []types.Diagnostic{diag(1, 1, types.SeverityError, "fresh")}, doc)
	require.NoError(t, err)
	assert.Equal(t, "fresh", s.Diagnostics(file)[0].Message)
}

func TestStore_RemoveStopsTracking(t *testing.T) {
	doc := textbuf.NewDocument(file, "a\n")
	s := annotate.NewStore()
	gen := s.Begin(file)
	_, err := s.Replace(file, gen, []types.Diagnostic{diag(1, 1, types.SeverityError, "x")}, doc)
	require.NoError(t, err)
	attached := s.Snapshot(file)

	assert.True(t, s.Remove(file))
	assert.False(t, s.Tracked(file))
	assert.False(t, attached[0].Attached())
	assert.Empty(t, s.Snapshot(file))

	_, err = s.Replace(file, gen, nil, doc)
	assert.ErrorIs(t, err, annotate.ErrNotTracked)
	assert.False(t, s.Remove(file))
}

func TestStore_DedupAndSkipInvalid(t *testing.T) {
	doc := textbuf.NewDocument(file, "a\n")
	s := annotate.NewStore()

	n, err := s.Replace(file, s.Begin(file), []types.Diagnostic{
		diag(1, 1, types.SeverityError, "x"),
		diag(1, 1, types.SeverityError, "x"),
		diag(40, 1, types.SeverityError, "beyond end of file"),
	}, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_ClearKeepsTracking(t *testing.T) {
	doc := textbuf.NewDocument(file, "a\n")
	s := annotate.NewStore()
	_, err := s.Replace(file, s.Begin(file), []types.Diagnostic{diag(1, 1, types.SeverityError, "x")}, doc)
	require.NoError(t, err)

	s.Clear(file)
	assert.True(t, s.Tracked(file))
	assert.Empty(t, s.Snapshot(file))
	assert.Equal(t, []string{file}, s.Paths())

	s.RemoveAll()
	assert.Empty(t, s.Paths())
}

func TestStore_ConcurrentReadersNeverSeePartialSets(t *testing.T) {
	doc := textbuf.NewDocument(file, "a\nb\nc\nd\n")
	s := annotate.NewStore()
	setA := []types.Diagnostic{
		diag(1, 1, types.SeverityError, "A"), diag(2, 1, types.SeverityError, "A"),
		diag(3, 1, types.SeverityError, "A"), diag(4, 1, types.SeverityError, "A"),
	}
	setB := []types.Diagnostic{
		diag(1, 1, types.SeverityWarning, "B"), diag(2, 1, types.SeverityWarning, "B"),
		diag(3, 1, types.SeverityWarning, "B"), diag(4, 1, types.SeverityWarning, "B"),
	}
	_, err := s.Replace(file, s.Begin(file), setA, doc)
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			set := setA
			if i%2 == 1 {
				set = setB
			}
			_, _ = s.Replace(file, s.Begin(file), set, doc)
		}
		close(stop)
	}()

	for done := false; !done; {
		select {
		case <-stop:
			done = true
		default:
		}
		got := s.Diagnostics(file)
		require.Len(t, got, 4)
		for _, d := range got {
			assert.Equal(t, got[0].Message, d.Message, "mixed set observed")
		}
	}
	wg.Wait()
}
