package regex

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
)

// Span is the half-open byte range [Start, End) of one match.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Empty reports whether the span matched zero bytes.
func (s Span) Empty() bool {
	return s.Start == s.End
}

// Matcher is the primary compiled form produced by a backend. FindAt looks
// for the leftmost match in subject[offset:] and reports absolute offsets
// into subject. It may panic; TryMatch turns a panic into an ExecError.
type Matcher interface {
	FindAt(subject []byte, offset int) (start, end int, found bool)
}

// Pattern is a compiled regular expression owned by one cache slot. It holds
// the backend's primary form and, optionally, study data the backend derived
// from it.
type Pattern struct {
	expr    string
	backend string
	flags   Flags

	primary Matcher
	// literal is the study form: set when the whole pattern is a plain
	// case-sensitive literal, letting the executor skip the engine.
	literal []byte

	released  atomic.Bool
	onRelease func(p *Pattern)
}

// NewPattern wraps m as a Pattern for backends defined outside this package.
func NewPattern(expr, backend string, flags Flags, m Matcher) *Pattern {
	return newPattern(expr, backend, flags, m, nil)
}

func newPattern(expr, backend string, flags Flags, primary Matcher, literal []byte) *Pattern {
	return &Pattern{
		expr:    expr,
		backend: backend,
		flags:   flags,
		primary: primary,
		literal: literal,
	}
}

// String returns the source text of the pattern.
func (p *Pattern) String() string {
	return p.expr
}

// Backend returns the name of the backend that compiled the pattern.
func (p *Pattern) Backend() string {
	return p.backend
}

// Studied reports whether the backend produced study data for the pattern.
func (p *Pattern) Studied() bool {
	return p.literal != nil
}

// Released reports whether Close has been called.
func (p *Pattern) Released() bool {
	return p.released.Load()
}

// Close releases the pattern. Only the first call has an effect. Callers
// that borrowed the pattern before it was released may finish their scan.
func (p *Pattern) Close() error {
	if !p.released.CompareAndSwap(false, true) {
		return nil
	}
	if p.onRelease != nil {
		p.onRelease(p)
	}
	return nil
}

// TryMatch performs one match attempt of p against subject[offset:]. The
// returned span is absolute. Offsets outside [0, len(subject)] never match.
func (p *Pattern) TryMatch(subject []byte, offset int) (span Span, ok bool, err error) {
	if offset < 0 || offset > len(subject) {
		return Span{}, false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			span, ok, err = Span{}, false, p.panicError(r)
		}
	}()

	var start, end int
	var found bool
	if p.literal != nil {
		start, end, found = findLiteral(p.literal, subject, offset)
	} else {
		start, end, found = p.primary.FindAt(subject, offset)
	}
	if !found {
		return Span{}, false, nil
	}
	if start < offset || end < start || end > len(subject) {
		return Span{}, false, &ExecError{
			Backend: p.backend,
			Code:    ExecBadSpan,
			Err:     fmt.Errorf("span [%d, %d) outside subject window [%d, %d]", start, end, offset, len(subject)),
		}
	}
	return Span{Start: start, End: end}, true, nil
}

func (p *Pattern) panicError(r any) error {
	code := ExecInternal
	err, isErr := r.(error)
	if !isErr {
		err = fmt.Errorf("%v", r)
	}
	if re, isRuntime := r.(runtime.Error); isRuntime {
		msg := re.Error()
		if strings.Contains(msg, "out of memory") || strings.Contains(msg, "makeslice") {
			code = ExecNoMemory
		}
	}
	return &ExecError{Backend: p.backend, Code: code, Err: err}
}

func findLiteral(lit, subject []byte, offset int) (int, int, bool) {
	i := bytes.Index(subject[offset:], lit)
	if i < 0 {
		return -1, -1, false
	}
	start := offset + i
	return start, start + len(lit), true
}
