package regex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type panicMatcher struct{ value any }

func (m panicMatcher) FindAt([]byte, int) (int, int, bool) {
	panic(m.value)
}

type allocMatcher struct{ n int }

func (m allocMatcher) FindAt([]byte, int) (int, int, bool) {
	buf := make([]byte, m.n)
	return 0, len(buf), true
}

type fixedMatcher struct{ start, end int }

func (m fixedMatcher) FindAt([]byte, int) (int, int, bool) {
	return m.start, m.end, true
}

func TestTryMatchReturnsAbsoluteSpan(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, b Backend) {
		p := compile(t, b, "c[a-z]")

		span, ok, err := p.TryMatch([]byte("abcdcx"), 3)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, Span{Start: 4, End: 6}, span)
		require.Equal(t, 2, span.Len())

		_, ok, err = p.TryMatch([]byte("abcdcx"), 7)
		require.NoError(t, err)
		require.False(t, ok)

		_, ok, err = p.TryMatch([]byte("abcdcx"), -1)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestTryMatchZeroLength(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, b Backend) {
		p := compile(t, b, "z*")

		span, ok, err := p.TryMatch([]byte("abc"), 3)
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, span.Empty())
		require.Equal(t, 3, span.Start)
	})
}

func TestTryMatchEnginePanicIsExecError(t *testing.T) {
	t.Parallel()

	p := newPattern("boom", "fake", 0, panicMatcher{value: "engine exploded"}, nil)

	_, ok, err := p.TryMatch([]byte("subject"), 0)
	require.False(t, ok)
	var exec *ExecError
	require.ErrorAs(t, err, &exec)
	require.Equal(t, ExecInternal, exec.Code)
	require.Equal(t, "fake", exec.Backend)
	require.Contains(t, err.Error(), "engine exploded")

	n, err := CountAll(p, "subject")
	require.Error(t, err)
	require.Zero(t, n)

	_, err = LocateNth(p, "subject", 1)
	require.ErrorAs(t, err, &exec)
}

func TestTryMatchAllocationFailureIsNoMemory(t *testing.T) {
	t.Parallel()

	p := newPattern("alloc", "fake", 0, allocMatcher{n: -1}, nil)

	_, _, err := p.TryMatch([]byte("subject"), 0)
	var exec *ExecError
	require.ErrorAs(t, err, &exec)
	require.Equal(t, ExecNoMemory, exec.Code)
	require.ErrorIs(t, err, ErrNoMemory)
}

func TestTryMatchRejectsSpanOutsideWindow(t *testing.T) {
	t.Parallel()

	p := newPattern("bad", "fake", 0, fixedMatcher{start: 1, end: 99}, nil)

	_, ok, err := p.TryMatch([]byte("subject"), 0)
	require.False(t, ok)
	var exec *ExecError
	require.ErrorAs(t, err, &exec)
	require.Equal(t, ExecBadSpan, exec.Code)

	// A span starting before the offset is as wrong as one past the end.
	p = newPattern("bad", "fake", 0, fixedMatcher{start: 0, end: 1}, nil)
	_, _, err = p.TryMatch([]byte("subject"), 2)
	require.ErrorAs(t, err, &exec)
}

func TestPOSIXStudiesPlainLiterals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr    string
		flags   Flags
		studied bool
	}{
		{expr: "needle", studied: true},
		{expr: "a.c"},
		{expr: "^needle"},
		{expr: "needle", flags: FoldCase},
		{expr: "x+"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := POSIX().Compile(tt.expr, tt.flags)
			require.NoError(t, err)
			require.Equal(t, tt.studied, p.Studied())
		})
	}

	p, err := PCRE().Compile("needle", 0)
	require.NoError(t, err)
	require.False(t, p.Studied())
}

func TestStudiedLiteralMatchesLikeEngine(t *testing.T) {
	t.Parallel()

	p := compile(t, POSIX(), "an")
	require.True(t, p.Studied())

	n, err := CountAll(p, "banana")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	pos, err := LocateNth(p, "banana", 2)
	require.NoError(t, err)
	require.Equal(t, 3, pos)
}

func TestPOSIXFoldCase(t *testing.T) {
	t.Parallel()

	p, err := POSIX().Compile("ab+c", FoldCase)
	require.NoError(t, err)

	matched, err := Test(p, "xxABBC")
	require.NoError(t, err)
	require.True(t, matched)

	exact := compile(t, POSIX(), "ab+c")
	matched, err = Test(exact, "xxABBC")
	require.NoError(t, err)
	require.False(t, matched)
}

func TestPOSIXRejectsPerlExtensions(t *testing.T) {
	t.Parallel()

	_, err := POSIX().Compile(`\d+`, 0)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)

	p := compile(t, PCRE(), `\d+`)
	matched, err := Test(p, "abc123")
	require.NoError(t, err)
	require.True(t, matched)
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend Backend
		expr    string
		message string
		offset  int
	}{
		{name: "posix unclosed", backend: POSIX(), expr: "(unclosed", message: "missing closing )", offset: 0},
		{name: "pcre unclosed", backend: PCRE(), expr: "(unclosed", message: "missing closing )", offset: 0},
		{name: "posix range", backend: POSIX(), expr: "x[z-a]", message: "invalid character class range", offset: 2},
		{name: "pcre nested repeat", backend: PCRE(), expr: "a**", message: "invalid nested repetition operator", offset: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := tt.backend.Compile(tt.expr, 0)
			require.Nil(t, p)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			require.Equal(t, tt.expr, ce.Pattern)
			require.Equal(t, tt.message, ce.Message)
			require.Equal(t, tt.offset, ce.Offset)
			require.Contains(t, err.Error(), tt.expr+": "+tt.message)
		})
	}
}

func TestCompileErrorWithoutOffset(t *testing.T) {
	t.Parallel()

	ce := newCompileError("p", errors.New("too complex"))
	require.Equal(t, -1, ce.Offset)
	require.Equal(t, "p: too complex", ce.Error())
}

func TestPatternCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	p, err := POSIX().Compile("abc", 0)
	require.NoError(t, err)

	calls := 0
	p.onRelease = func(*Pattern) { calls++ }
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.Equal(t, 1, calls)
	require.True(t, p.Released())

	// A borrower holding the pattern can still finish its scan.
	matched, err := Test(p, "xabc")
	require.NoError(t, err)
	require.True(t, matched)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{BackendPCRE, BackendPOSIX}, Backends())

	b, err := Lookup(BackendPCRE)
	require.NoError(t, err)
	require.Equal(t, BackendPCRE, b.Name())
	require.Contains(t, b.Version(), "coregex")
	require.False(t, b.SupportsFoldCaseFunction())

	b, err = Lookup(BackendPOSIX)
	require.NoError(t, err)
	require.Contains(t, b.Version(), "POSIX")
	require.True(t, b.SupportsFoldCaseFunction())

	_, err = Lookup("gnu")
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestModuleVersionMissingDependency(t *testing.T) {
	t.Parallel()

	require.Equal(t, "(unknown)", moduleVersion("example.invalid/no-such-module"))
}
