//go:build !((darwin && (amd64 || arm64)) || (freebsd && (amd64 || arm64)) || (linux && (386 || amd64 || arm || arm64 || loong64 || ppc64le || riscv64 || s390x)) || (windows && (386 || amd64 || arm64))) || sqlregexp_ncruces

package db

import (
	"errors"
	"sync"

	"github.com/mcfsalla/sqlregexp/internal/regex"
	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
)

const driverName = "sqlite3"

var autoOnce sync.Once

// auxSite is the call-site handle kept in SQLite's auxiliary data slot 0.
// SQLite closes it when it discards the slot, which retires the site.
type auxSite struct {
	reg  *Registry
	once sync.Once
}

func (s *auxSite) Close() error {
	s.once.Do(func() {
		s.reg.Retire(s)
	})
	return nil
}

// Install binds reg to the regexp SQL functions of every connection opened
// afterwards. A connection keeps the registry bound when it was created, and
// Install fails with ErrRegistryInUse while a different registry is still
// open.
func Install(reg *Registry) error {
	if err := bind(reg); err != nil {
		return err
	}
	autoOnce.Do(func() {
		sqlite3.AutoExtension(func(c *sqlite3.Conn) error {
			reg := active.Load()
			for _, fn := range reg.Functions() {
				if err := c.CreateFunction(fn.Name, fn.NArgs, sqlite3.DETERMINISTIC, scalar(reg, fn)); err != nil {
					return err
				}
			}
			return nil
		})
	})
	logRegistered("ncruces", reg)
	return nil
}

func scalar(reg *Registry, fn Function) sqlite3.ScalarFunction {
	return func(ctx sqlite3.Context, args ...sqlite3.Value) {
		in := make([]Arg, len(args))
		for i := range args {
			in[i] = sqliteArg{v: args[i]}
		}

		if fn.NArgs == 0 {
			res, err := reg.Call(fn, nil, in)
			writeResult(ctx, res, err)
			return
		}

		site, _ := ctx.GetAuxData(0).(*auxSite)
		fresh := site == nil
		if fresh {
			site = &auxSite{reg: reg}
		}
		res, err := reg.Call(fn, site, in)
		// The handle is only attached once it owns a slot, so a failed
		// compilation leaves nothing behind for the next row.
		if fresh && reg.Cached(fn, site) {
			ctx.SetAuxData(0, site)
		}
		writeResult(ctx, res, err)
	}
}

func writeResult(ctx sqlite3.Context, res Result, err error) {
	switch {
	case errors.Is(err, regex.ErrNoMemory):
		ctx.ResultError(sqlite3.NOMEM)
	case err != nil:
		ctx.ResultError(err)
	case res.IsNull():
		ctx.ResultNull()
	default:
		if n, ok := res.Int(); ok {
			ctx.ResultInt64(n)
			return
		}
		s, _ := res.Text()
		ctx.ResultText(s)
	}
}

type sqliteArg struct {
	v sqlite3.Value
}

func (a sqliteArg) IsNull() bool {
	return a.v.Type() == sqlite3.NULL
}

func (a sqliteArg) Text() string {
	return a.v.Text()
}

func (a sqliteArg) Int() (int64, bool) {
	switch a.v.Type() {
	case sqlite3.INTEGER:
		return a.v.Int64(), true
	case sqlite3.FLOAT:
		return floatToInt(a.v.Float())
	case sqlite3.TEXT, sqlite3.BLOB:
		return parseInt(a.v.Text())
	default:
		return 0, false
	}
}
