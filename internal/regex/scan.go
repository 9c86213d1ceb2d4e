package regex

import "unicode/utf8"

// Test reports whether p matches anywhere in subject.
func Test(p *Pattern, subject string) (bool, error) {
	_, ok, err := p.TryMatch([]byte(subject), 0)
	return ok, err
}

// ExtractFirst returns the text of the first match of p in subject. ok is
// false when nothing matches.
func ExtractFirst(p *Pattern, subject string) (match string, ok bool, err error) {
	span, ok, err := p.TryMatch([]byte(subject), 0)
	if err != nil || !ok {
		return "", false, err
	}
	return subject[span.Start:span.End], true, nil
}

// CountAll returns the number of successive non-overlapping matches of p in
// subject.
func CountAll(p *Pattern, subject string) (int, error) {
	s := newScan(p, subject)
	for {
		more, err := s.next()
		if err != nil {
			return 0, err
		}
		if !more {
			return s.count, nil
		}
	}
}

// LocateNth returns the start offset of the k-th successive match of p in
// subject, or -1 when there are fewer than k matches. k must be positive.
func LocateNth(p *Pattern, subject string, k int64) (int, error) {
	if k <= 0 {
		return 0, NewValidationError(MsgBadOrdinal)
	}
	s := newScan(p, subject)
	for int64(s.count) < k {
		more, err := s.next()
		if err != nil {
			return 0, err
		}
		if !more {
			return -1, nil
		}
	}
	return s.last.Start, nil
}

// scan walks the matches of one pattern over one subject. Each attempt
// starts where the previous match ended; an empty match moves the offset
// forward by one character so the walk always terminates.
type scan struct {
	p       *Pattern
	subject []byte
	offset  int
	count   int
	last    Span
}

func newScan(p *Pattern, subject string) *scan {
	return &scan{p: p, subject: []byte(subject)}
}

// next performs one attempt. It reports false once the subject is exhausted.
func (s *scan) next() (bool, error) {
	if s.offset > len(s.subject) {
		return false, nil
	}
	span, ok, err := s.p.TryMatch(s.subject, s.offset)
	if err != nil || !ok {
		return false, err
	}
	s.count++
	s.last = span
	s.offset = s.advance(span)
	return true, nil
}

func (s *scan) advance(span Span) int {
	if !span.Empty() {
		return span.End
	}
	if span.End >= len(s.subject) {
		return span.End + 1
	}
	_, size := utf8.DecodeRune(s.subject[span.End:])
	return span.End + size
}
