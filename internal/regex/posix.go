package regex

import (
	"regexp"
	"regexp/syntax"
	"runtime"
)

// posixFlags parse extended POSIX syntax the way regcomp(REG_EXTENDED) reads
// it: ^ and $ anchor the whole subject and . also matches newline.
const posixFlags = syntax.POSIX | syntax.OneLine | syntax.DotNL

type posixBackend struct{}

// POSIX returns the backend compiling extended POSIX expressions with
// leftmost-longest semantics on top of the Go regexp engine.
func POSIX() Backend {
	return posixBackend{}
}

func (posixBackend) Name() string {
	return BackendPOSIX
}

func (posixBackend) Version() string {
	return "POSIX ERE (Go regexp " + runtime.Version() + ")"
}

func (posixBackend) SupportsFoldCaseFunction() bool {
	return true
}

func (posixBackend) Compile(expr string, flags Flags) (*Pattern, error) {
	sf := posixFlags
	if flags&FoldCase != 0 {
		sf |= syntax.FoldCase
	}
	tree, err := syntax.Parse(expr, sf)
	if err != nil {
		return nil, newCompileError(expr, err)
	}

	// regexp has no entry point for a parsed tree, so the tree is rendered
	// back to Perl syntax with its flags spelled out.
	re, err := regexp.Compile(tree.String())
	if err != nil {
		return nil, newCompileError(expr, err)
	}
	re.Longest()

	return newPattern(expr, BackendPOSIX, flags, posixMatcher{re: re}, studyLiteral(tree)), nil
}

// posixMatcher matches the remainder of the subject as a fresh string, like
// regexec on z+offset: ^ can match at every scan offset.
type posixMatcher struct {
	re *regexp.Regexp
}

func (m posixMatcher) FindAt(subject []byte, offset int) (int, int, bool) {
	loc := m.re.FindIndex(subject[offset:])
	if loc == nil {
		return -1, -1, false
	}
	return offset + loc[0], offset + loc[1], true
}

// studyLiteral returns the pattern bytes when tree is a single case-sensitive
// literal, and nil otherwise.
func studyLiteral(tree *syntax.Regexp) []byte {
	tree = tree.Simplify()
	if tree.Op != syntax.OpLiteral || tree.Flags&syntax.FoldCase != 0 || len(tree.Rune) == 0 {
		return nil
	}
	return []byte(string(tree.Rune))
}
