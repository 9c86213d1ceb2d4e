package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// ErrRegistryInUse is returned by Install while a different registry is
// still open.
var ErrRegistryInUse = errors.New("regexp functions are bound to another open registry")

var (
	bindMu sync.Mutex
	// active is the registry behind the regexp SQL functions. Only one open
	// registry may be bound at a time, so a connection never sees another
	// backend or cache while its own registry is open.
	active atomic.Pointer[Registry]
)

func bind(reg *Registry) error {
	bindMu.Lock()
	defer bindMu.Unlock()

	if cur := active.Load(); cur != nil && cur != reg && !cur.Closed() {
		return fmt.Errorf("%w: close the %s registry first", ErrRegistryInUse, cur.Backend().Name())
	}
	active.Store(reg)
	return nil
}

// Open opens the database at dsn with reg installed behind the regexp SQL
// functions.
func Open(ctx context.Context, reg *Registry, dsn string) (*sql.DB, error) {
	if err := Install(reg); err != nil {
		return nil, err
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Every pooled connection to an in-memory DSN would get its own empty
	// database.
	if isMemoryDSN(dsn) {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return conn, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == "" || dsn == MemoryDSN || strings.Contains(dsn, "mode=memory")
}
