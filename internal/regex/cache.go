package regex

import (
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSlots = 1024

// CallSite identifies one SQL expression position evaluating a function. It
// must be comparable; drivers pass a pointer handle or a small struct key.
type CallSite any

// CacheStats tracks cache counters.
type CacheStats struct {
	Compiles      int64
	Failures      int64
	Hits          int64
	Releases      int64
	StudyReleases int64
	Live          int
}

// Cache holds at most one compiled pattern per call site. The first pattern
// text compiled for a site is kept for the site's whole lifetime: later
// lookups do not look at the text they are given.
//
// Invocations sharing a call site are serialized by SQLite, so compilation
// happens outside the lock. The lock only guards the slot table, which is
// shared by every connection in the process.
type Cache struct {
	backend Backend
	flags   Flags

	mu     sync.Mutex
	slots  *lru.Cache[CallSite, *Pattern]
	closed bool

	compiles      atomic.Int64
	failures      atomic.Int64
	hits          atomic.Int64
	releases      atomic.Int64
	studyReleases atomic.Int64
}

// NewCache creates a cache compiling with backend and flags. A table holding
// more than size call sites evicts, and releases, the least recently used
// one. Zero or negative sizes fall back to the default.
func NewCache(backend Backend, flags Flags, size int) *Cache {
	if size <= 0 {
		size = defaultCacheSlots
	}
	c := &Cache{backend: backend, flags: flags}
	c.slots, _ = lru.NewWithEvict[CallSite, *Pattern](size, c.onEvicted)
	return c
}

// Backend returns the backend the cache compiles with.
func (c *Cache) Backend() Backend {
	return c.backend
}

// GetOrCompile returns the pattern bound to site, compiling expr when the
// site has none. A failed compilation leaves no slot behind, so the next call
// for the site compiles again.
func (c *Cache) GetOrCompile(site CallSite, expr string) (*Pattern, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	if p, ok := c.slots.Get(site); ok {
		c.mu.Unlock()
		c.hits.Add(1)
		return p, nil
	}
	c.mu.Unlock()

	p, err := c.backend.Compile(expr, c.flags)
	if err != nil {
		c.failures.Add(1)
		slog.Debug("Pattern compilation failed", "backend", c.backend.Name(), "pattern", expr, "error", err)
		return nil, err
	}
	c.compiles.Add(1)
	p.onRelease = c.released

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		p.Close()
		return nil, ErrCacheClosed
	}
	// Sites keyed by value can be shared across connections; the slot that
	// landed first wins and the duplicate is released.
	if existing, ok := c.slots.Get(site); ok {
		p.Close()
		return existing, nil
	}
	c.slots.Add(site, p)
	return p, nil
}

// Lookup returns the pattern bound to site without compiling.
func (c *Cache) Lookup(site CallSite) (*Pattern, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	return c.slots.Peek(site)
}

// Retire drops the slot of site and releases its pattern. Retiring a site
// without a slot is a no-op.
func (c *Cache) Retire(site CallSite) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.slots.Remove(site)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	live := c.slots.Len()
	c.mu.Unlock()
	return CacheStats{
		Compiles:      c.compiles.Load(),
		Failures:      c.failures.Load(),
		Hits:          c.hits.Load(),
		Releases:      c.releases.Load(),
		StudyReleases: c.studyReleases.Load(),
		Live:          live,
	}
}

// Close releases every cached pattern. Later lookups fail with
// ErrCacheClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.slots.Purge()
	c.closed = true
	return nil
}

func (c *Cache) onEvicted(_ CallSite, p *Pattern) {
	if p == nil {
		return
	}
	p.Close()
}

func (c *Cache) released(p *Pattern) {
	c.releases.Add(1)
	if p.Studied() {
		c.studyReleases.Add(1)
	}
	slog.Debug("Released compiled pattern", "backend", p.Backend(), "pattern", p.String())
}
