package regex

import (
	"errors"
	"fmt"
	"regexp/syntax"
	"strings"
)

var (
	// ErrNoMemory reports an allocation failure inside an engine. SQL
	// drivers map it to SQLite's out-of-memory result.
	ErrNoMemory = errors.New("out of memory")

	// ErrCacheClosed indicates a lookup against a closed pattern cache.
	ErrCacheClosed = errors.New("pattern cache is closed")

	// ErrUnknownBackend indicates a backend name that is not registered.
	ErrUnknownBackend = errors.New("unknown regex backend")
)

// Messages surfaced to SQL callers for invalid arguments.
const (
	MsgNoRegexp   = "no regexp"
	MsgNoString   = "no string"
	MsgBadOrdinal = "matching substring order must to be > 0"
)

// ValidationError reports a missing or malformed function argument.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError returns a ValidationError carrying msg.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// CompileError reports a pattern the backend could not compile.
type CompileError struct {
	Pattern string
	Message string
	// Offset is the byte offset of the offending fragment in Pattern, or -1
	// when the engine does not report one.
	Offset int
}

func (e *CompileError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s: %s", e.Pattern, e.Message)
	}
	return fmt.Sprintf("%s: %s (offset %d)", e.Pattern, e.Message, e.Offset)
}

// newCompileError converts an engine error into a CompileError. Syntax
// errors carry the offending fragment, which is located in the pattern to
// recover an offset.
func newCompileError(pattern string, err error) *CompileError {
	ce := &CompileError{Pattern: pattern, Message: err.Error(), Offset: -1}
	var serr *syntax.Error
	if errors.As(err, &serr) {
		ce.Message = serr.Code.String()
		if serr.Expr != "" {
			ce.Offset = strings.Index(pattern, serr.Expr)
		}
	}
	return ce
}

// Execution failure codes.
const (
	ExecInternal = iota + 1
	ExecBadSpan
	ExecNoMemory
)

// ExecError reports an engine failure while matching. It is never used for
// an ordinary no-match outcome.
type ExecError struct {
	Backend string
	Code    int
	Err     error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s execution failed with code %d: %v", e.Backend, e.Code, e.Err)
	}
	return fmt.Sprintf("%s execution failed with code %d", e.Backend, e.Code)
}

func (e *ExecError) Unwrap() error {
	if e.Code == ExecNoMemory {
		return ErrNoMemory
	}
	return e.Err
}
