package regex

import (
	"regexp/syntax"
	"runtime/debug"

	"github.com/coregx/coregex/meta"
)

const coregexModule = "github.com/coregx/coregex"

type pcreBackend struct {
	config meta.Config
}

// PCRE returns the backend compiling Perl-compatible expressions with the
// coregex meta engine.
func PCRE() Backend {
	return pcreBackend{config: meta.DefaultConfig()}
}

func (pcreBackend) Name() string {
	return BackendPCRE
}

func (pcreBackend) Version() string {
	return "coregex " + moduleVersion(coregexModule)
}

// Perl syntax spells case-insensitivity inline as (?i), so only the POSIX
// backend gets a separate function for it.
func (pcreBackend) SupportsFoldCaseFunction() bool {
	return false
}

func (b pcreBackend) Compile(expr string, flags Flags) (*Pattern, error) {
	sf := syntax.Perl
	if flags&FoldCase != 0 {
		sf |= syntax.FoldCase
	}
	tree, err := syntax.Parse(expr, sf)
	if err != nil {
		return nil, newCompileError(expr, err)
	}
	engine, err := meta.CompileRegexp(tree, b.config)
	if err != nil {
		return nil, newCompileError(expr, err)
	}
	// coregex runs its own literal prefilters, so no study data is kept.
	return newPattern(expr, BackendPCRE, flags, pcreMatcher{engine: engine}, nil), nil
}

// pcreMatcher searches from offset with the full subject as context, so
// anchors and word boundaries see the bytes before offset.
type pcreMatcher struct {
	engine *meta.Engine
}

func (m pcreMatcher) FindAt(subject []byte, offset int) (int, int, bool) {
	return m.engine.FindIndicesAt(subject, offset)
}

func moduleVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(unknown)"
	}
	for _, dep := range info.Deps {
		if dep.Path != path {
			continue
		}
		if dep.Replace != nil {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return "(unknown)"
}
