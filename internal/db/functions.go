package db

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/mcfsalla/sqlregexp/internal/config"
	"github.com/mcfsalla/sqlregexp/internal/regex"
)

// SQL function names.
const (
	FuncRegexp        = "regexp"
	FuncIRegexp       = "iregexp"
	FuncMatch         = "regexp_match"
	FuncMatchCount    = "regexp_match_count"
	FuncMatchPosition = "regexp_match_position"
	FuncVersionInfo   = "regexp_version_info"
)

// Arg is one SQL argument as seen by the regexp functions.
type Arg interface {
	// IsNull reports whether the argument is SQL NULL.
	IsNull() bool
	// Text returns the argument coerced to text.
	Text() string
	// Int returns the argument as an integer. ok is false for values that
	// have no integer reading.
	Int() (n int64, ok bool)
}

// Result is the value a function hands back to SQLite. A zero Result is
// SQL NULL.
type Result struct {
	kind resultKind
	i    int64
	s    string
}

type resultKind uint8

const (
	resultNull resultKind = iota
	resultInt
	resultText
)

func intResult(n int64) Result   { return Result{kind: resultInt, i: n} }
func textResult(s string) Result { return Result{kind: resultText, s: s} }

func boolResult(b bool) Result {
	if b {
		return intResult(1)
	}
	return intResult(0)
}

// IsNull reports whether r is SQL NULL.
func (r Result) IsNull() bool { return r.kind == resultNull }

// Int returns the integer value of r.
func (r Result) Int() (int64, bool) { return r.i, r.kind == resultInt }

// Text returns the text value of r.
func (r Result) Text() (string, bool) { return r.s, r.kind == resultText }

// Function describes one SQL function.
type Function struct {
	Name  string
	NArgs int
	// Help is a one-line description used by the CLI listing.
	Help string

	fold bool
	scan func(p *regex.Pattern, subject string, args []Arg) (Result, error)
	eval func(r *Registry) Result
}

// Registry owns the pattern caches behind the SQL functions of one process.
type Registry struct {
	backend regex.Backend
	exact   *regex.Cache
	folded  *regex.Cache
	closed  atomic.Bool
}

// NewRegistry creates a registry for the backend named in opts.
func NewRegistry(opts config.Options) (*Registry, error) {
	backend, err := regex.Lookup(opts.Backend)
	if err != nil {
		return nil, fmt.Errorf("selecting regex backend: %w", err)
	}
	return registryFor(backend, opts.CacheSize), nil
}

func registryFor(backend regex.Backend, size int) *Registry {
	return &Registry{
		backend: backend,
		exact:   regex.NewCache(backend, 0, size),
		folded:  regex.NewCache(backend, regex.FoldCase, size),
	}
}

// Backend returns the active regex backend.
func (r *Registry) Backend() regex.Backend {
	return r.backend
}

// Stats returns the counters of the case-sensitive and case-insensitive
// caches.
func (r *Registry) Stats() (exact, folded regex.CacheStats) {
	return r.exact.Stats(), r.folded.Stats()
}

// Close releases every cached pattern.
func (r *Registry) Close() error {
	r.closed.Store(true)
	r.exact.Close()
	r.folded.Close()
	return nil
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	return r.closed.Load()
}

// Functions returns the SQL functions exposed for the active backend.
func (r *Registry) Functions() []Function {
	fns := []Function{
		{
			Name:  FuncVersionInfo,
			NArgs: 0,
			Help:  "identity and version of the regex engine",
			eval: func(r *Registry) Result {
				return textResult(r.backend.Version())
			},
		},
		{
			Name:  FuncRegexp,
			NArgs: 2,
			Help:  "1 if pattern matches anywhere in subject, else 0",
			scan:  scanTest,
		},
	}
	if r.backend.SupportsFoldCaseFunction() {
		fns = append(fns, Function{
			Name:  FuncIRegexp,
			NArgs: 2,
			Help:  "case-insensitive regexp",
			fold:  true,
			scan:  scanTest,
		})
	}
	return append(fns,
		Function{
			Name:  FuncMatch,
			NArgs: 2,
			Help:  "first matching substring, or NULL",
			scan:  scanExtract,
		},
		Function{
			Name:  FuncMatchCount,
			NArgs: 2,
			Help:  "number of successive matches",
			scan:  scanCount,
		},
		Function{
			Name:  FuncMatchPosition,
			NArgs: 3,
			Help:  "byte offset of the n-th match, or -1",
			scan:  scanLocate,
		},
	)
}

// Function returns the function exposed under name for the active backend.
func (r *Registry) Function(name string) (Function, bool) {
	for _, fn := range r.Functions() {
		if fn.Name == name {
			return fn, true
		}
	}
	return Function{}, false
}

// Call evaluates fn for one row. site identifies the expression being
// evaluated and keys its cached pattern.
func (r *Registry) Call(fn Function, site regex.CallSite, args []Arg) (Result, error) {
	if fn.eval != nil {
		return fn.eval(r), nil
	}
	if len(args) != fn.NArgs {
		return Result{}, regex.NewValidationError(fmt.Sprintf("%s: wrong number of arguments", fn.Name))
	}
	if args[0].IsNull() {
		return Result{}, regex.NewValidationError(regex.MsgNoRegexp)
	}
	if args[1].IsNull() {
		return Result{}, regex.NewValidationError(regex.MsgNoString)
	}
	if fn.NArgs == 3 {
		if _, err := ordinal(args[2]); err != nil {
			return Result{}, err
		}
	}

	p, err := r.cache(fn).GetOrCompile(site, args[0].Text())
	if err != nil {
		return Result{}, err
	}
	return fn.scan(p, args[1].Text(), args)
}

// Cached reports whether site holds a compiled pattern for fn.
func (r *Registry) Cached(fn Function, site regex.CallSite) bool {
	_, ok := r.cache(fn).Lookup(site)
	return ok
}

// Retire releases the patterns bound to site.
func (r *Registry) Retire(site regex.CallSite) {
	r.exact.Retire(site)
	r.folded.Retire(site)
}

func (r *Registry) cache(fn Function) *regex.Cache {
	if fn.fold {
		return r.folded
	}
	return r.exact
}

func scanTest(p *regex.Pattern, subject string, _ []Arg) (Result, error) {
	ok, err := regex.Test(p, subject)
	if err != nil {
		return Result{}, err
	}
	return boolResult(ok), nil
}

func scanExtract(p *regex.Pattern, subject string, _ []Arg) (Result, error) {
	match, ok, err := regex.ExtractFirst(p, subject)
	if err != nil || !ok {
		return Result{}, err
	}
	return textResult(match), nil
}

func scanCount(p *regex.Pattern, subject string, _ []Arg) (Result, error) {
	n, err := regex.CountAll(p, subject)
	if err != nil {
		return Result{}, err
	}
	return intResult(int64(n)), nil
}

func scanLocate(p *regex.Pattern, subject string, args []Arg) (Result, error) {
	k, err := ordinal(args[2])
	if err != nil {
		return Result{}, err
	}
	pos, err := regex.LocateNth(p, subject, k)
	if err != nil {
		return Result{}, err
	}
	return intResult(int64(pos)), nil
}

// ordinal reads the match number of regexp_match_position, counted from 1.
func ordinal(a Arg) (int64, error) {
	k, ok := a.Int()
	if !ok || k <= 0 {
		return 0, regex.NewValidationError(regex.MsgBadOrdinal)
	}
	return k, nil
}

// valueArg adapts a database/sql driver value, the form modernc.org/sqlite
// hands to scalar functions.
type valueArg struct {
	v any
}

func (a valueArg) IsNull() bool {
	return a.v == nil
}

func (a valueArg) Text() string {
	switch v := a.v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (a valueArg) Int() (int64, bool) {
	switch v := a.v.(type) {
	case int64:
		return v, true
	case float64:
		return floatToInt(v)
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		return parseInt(v)
	case []byte:
		return parseInt(string(v))
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return floatToInt(f)
	}
	return 0, false
}

func logRegistered(driver string, r *Registry) {
	names := make([]string, 0, len(r.Functions()))
	for _, fn := range r.Functions() {
		names = append(names, fn.Name)
	}
	slog.Debug("Registered regexp SQL functions",
		"driver", driver,
		"backend", r.backend.Name(),
		"functions", strings.Join(names, ","),
	)
}
