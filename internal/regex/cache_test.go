package regex

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type site struct{ id int }

func newTestCache(t *testing.T, b Backend, size int) *Cache {
	t.Helper()

	c := NewCache(b, 0, size)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestCacheCompilesOncePerSite(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, b Backend) {
		c := newTestCache(t, b, 8)
		s := &site{id: 1}

		first, err := c.GetOrCompile(s, "[0-9]+")
		require.NoError(t, err)
		matched, err := Test(first, "ab12")
		require.NoError(t, err)
		require.True(t, matched)

		second, err := c.GetOrCompile(s, "[0-9]+")
		require.NoError(t, err)
		require.Same(t, first, second)
		matched, err = Test(second, "ab12")
		require.NoError(t, err)
		require.True(t, matched)

		stats := c.Stats()
		require.Equal(t, int64(1), stats.Compiles)
		require.Equal(t, int64(1), stats.Hits)
		require.Equal(t, 1, stats.Live)
	})
}

func TestCacheKeepsFirstPatternForSite(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, POSIX(), 8)
	s := &site{id: 1}

	_, err := c.GetOrCompile(s, "abc")
	require.NoError(t, err)

	// The pattern text is not inspected once the site holds a slot.
	p, err := c.GetOrCompile(s, "xyz")
	require.NoError(t, err)
	require.Equal(t, "abc", p.String())
	require.Equal(t, int64(1), c.Stats().Compiles)

	// Another site compiles its own pattern.
	other, err := c.GetOrCompile(&site{id: 2}, "xyz")
	require.NoError(t, err)
	require.Equal(t, "xyz", other.String())
	require.NotSame(t, p, other)
}

func TestCacheFailureLeavesNoSlot(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, b Backend) {
		c := newTestCache(t, b, 8)
		s := &site{id: 1}

		_, err := c.GetOrCompile(s, "(unclosed")
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		_, ok := c.Lookup(s)
		require.False(t, ok)

		p, err := c.GetOrCompile(s, "valid")
		require.NoError(t, err)
		matched, err := Test(p, "x valid x")
		require.NoError(t, err)
		require.True(t, matched)

		stats := c.Stats()
		require.Equal(t, int64(1), stats.Failures)
		require.Equal(t, int64(1), stats.Compiles)
		require.Equal(t, 1, stats.Live)
	})
}

func TestCacheRetireReleasesOnce(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, POSIX(), 8)
	s := &site{id: 1}

	p, err := c.GetOrCompile(s, "literal")
	require.NoError(t, err)
	require.True(t, p.Studied())

	c.Retire(s)
	c.Retire(s)
	require.True(t, p.Released())

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Releases)
	require.Equal(t, int64(1), stats.StudyReleases)
	require.Zero(t, stats.Live)

	// The site compiles again after retirement.
	again, err := c.GetOrCompile(s, "literal")
	require.NoError(t, err)
	require.NotSame(t, p, again)
	require.Equal(t, int64(2), c.Stats().Compiles)
}

func TestCacheReleasesPatternWithoutStudy(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, PCRE(), 8)
	s := &site{id: 1}

	p, err := c.GetOrCompile(s, "literal")
	require.NoError(t, err)
	require.False(t, p.Studied())

	c.Retire(s)
	stats := c.Stats()
	require.Equal(t, int64(1), stats.Releases)
	require.Zero(t, stats.StudyReleases)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, POSIX(), 2)
	sites := []*site{{id: 1}, {id: 2}, {id: 3}}

	var patterns []*Pattern
	for i, s := range sites {
		p, err := c.GetOrCompile(s, fmt.Sprintf("p%d", i))
		require.NoError(t, err)
		patterns = append(patterns, p)
	}

	require.True(t, patterns[0].Released(), "oldest site should be evicted")
	require.False(t, patterns[1].Released())
	require.False(t, patterns[2].Released())

	stats := c.Stats()
	require.Equal(t, 2, stats.Live)
	require.Equal(t, int64(1), stats.Releases)
}

func TestCacheCloseReleasesEverything(t *testing.T) {
	t.Parallel()

	c := NewCache(POSIX(), 0, 8)
	a, err := c.GetOrCompile(&site{id: 1}, "a")
	require.NoError(t, err)
	b, err := c.GetOrCompile(&site{id: 2}, "b+")
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.True(t, a.Released())
	require.True(t, b.Released())
	require.Equal(t, int64(2), c.Stats().Releases)

	_, err = c.GetOrCompile(&site{id: 1}, "a")
	require.ErrorIs(t, err, ErrCacheClosed)
	_, ok := c.Lookup(&site{id: 1})
	require.False(t, ok)
}

func TestCacheFoldCase(t *testing.T) {
	t.Parallel()

	c := NewCache(POSIX(), FoldCase, 0)
	t.Cleanup(func() { require.NoError(t, c.Close()) })

	p, err := c.GetOrCompile(&site{id: 1}, "hello")
	require.NoError(t, err)
	matched, err := Test(p, "say HELLO")
	require.NoError(t, err)
	require.True(t, matched)
}

func TestCacheConcurrentValueKeyedSite(t *testing.T) {
	t.Parallel()

	type key struct{ fn, pattern string }

	c := newTestCache(t, PCRE(), 8)
	k := key{fn: "regexp", pattern: "[a-z]+"}

	const workers = 16
	results := make([]*Pattern, workers)
	var g errgroup.Group
	for i := range workers {
		g.Go(func() error {
			p, err := c.GetOrCompile(k, k.pattern)
			results[i] = p
			return err
		})
	}
	require.NoError(t, g.Wait())

	live, ok := c.Lookup(k)
	require.True(t, ok)
	for _, p := range results {
		require.Same(t, live, p)
	}
	stats := c.Stats()
	require.Equal(t, 1, stats.Live)
	require.Equal(t, stats.Compiles-1, stats.Releases)
}
