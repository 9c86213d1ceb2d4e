//go:build ((darwin && (amd64 || arm64)) || (freebsd && (amd64 || arm64)) || (linux && (386 || amd64 || arm || arm64 || loong64 || ppc64le || riscv64 || s390x)) || (windows && (386 || amd64 || arm64))) && !sqlregexp_ncruces

package db

import (
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/mcfsalla/sqlregexp/internal/regex"
	"modernc.org/sqlite"
)

const driverName = "sqlite"

var (
	// modernc.org/sqlite registers functions process-wide, so each name is
	// registered once and dispatches to the bound registry on every call.
	registerMu sync.Mutex
	registered = map[string]bool{}
)

// siteKey stands in for a call site. modernc.org/sqlite does not expose
// sqlite3_get_auxdata, so a site is the function name and its pattern text;
// a site therefore never sees a pattern other than its own.
type siteKey struct {
	fn      string
	pattern string
}

// Install binds reg to the regexp SQL functions. Calls resolve the bound
// registry as they run, so connections opened earlier use reg too; Install
// fails with ErrRegistryInUse while a different registry is still open.
func Install(reg *Registry) error {
	if err := bind(reg); err != nil {
		return err
	}

	registerMu.Lock()
	defer registerMu.Unlock()
	for _, fn := range reg.Functions() {
		if registered[fn.Name] {
			continue
		}
		if err := sqlite.RegisterDeterministicScalarFunction(fn.Name, int32(fn.NArgs), scalar(fn.Name)); err != nil {
			return fmt.Errorf("registering %s: %w", fn.Name, err)
		}
		registered[fn.Name] = true
	}
	logRegistered("modernc", reg)
	return nil
}

func scalar(name string) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		reg := active.Load()
		fn, ok := reg.Function(name)
		if !ok {
			return nil, fmt.Errorf("%s: not available with the %s backend", name, reg.Backend().Name())
		}

		in := make([]Arg, len(args))
		for i, v := range args {
			in[i] = valueArg{v: v}
		}
		var site regex.CallSite
		if len(in) > 0 {
			site = siteKey{fn: name, pattern: in[0].Text()}
		}

		res, err := reg.Call(fn, site, in)
		if err != nil {
			return nil, err
		}
		return driverValue(res), nil
	}
}

func driverValue(r Result) driver.Value {
	if n, ok := r.Int(); ok {
		return n
	}
	if s, ok := r.Text(); ok {
		return s
	}
	return nil
}
