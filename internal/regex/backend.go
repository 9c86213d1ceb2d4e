// Package regex implements the regular-expression subsystem behind the SQL
// functions: interchangeable compile backends, a per-call-site pattern cache
// and the scan driver that counts and locates successive matches.
package regex

import (
	"fmt"
	"slices"
)

// Backend names accepted by Lookup.
const (
	BackendPOSIX = "posix"
	BackendPCRE  = "pcre"
)

// Flags alter how a pattern is compiled.
type Flags uint8

const (
	// FoldCase compiles the pattern case-insensitively.
	FoldCase Flags = 1 << iota
)

// Backend compiles pattern text into a Pattern. Implementations must be safe
// for concurrent use.
type Backend interface {
	// Name returns the identifier used in configuration.
	Name() string
	// Version returns a human readable engine identity.
	Version() string
	// Compile compiles expr. Failures are returned as *CompileError.
	Compile(expr string, flags Flags) (*Pattern, error)
	// SupportsFoldCaseFunction reports whether the case-insensitive test
	// function is exposed for this backend.
	SupportsFoldCaseFunction() bool
}

var backends = map[string]Backend{
	BackendPOSIX: POSIX(),
	BackendPCRE:  PCRE(),
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, error) {
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownBackend, name, Backends())
	}
	return b, nil
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
