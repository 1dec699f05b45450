package callsite

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLoadsOnce(t *testing.T) {
	c := newCache[string, *int]("test", 0, nil, strconv.Quote)
	var loads atomic.Int32
	release := make(chan struct{})

	const callers = 16
	results := make([]*int, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.get("k", func() (*int, error) {
				loads.Add(1)
				<-release
				n := 42
				return &n, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, v := range results {
		require.NotNil(t, v)
		assert.Same(t, results[0], v)
	}
}

func TestCacheSkipsFailures(t *testing.T) {
	c := newCache[string, int]("test", 0, nil, strconv.Quote)
	boom := errors.New("boom")

	_, err := c.get("k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.len())

	v, err := c.get("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, c.len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newCache[int, string]("test", 2, nil, strconv.Itoa)
	c.store(1, "one")
	c.store(2, "two")
	_, ok := c.lookup(1)
	require.True(t, ok)
	c.store(3, "three")

	_, ok = c.lookup(2)
	assert.False(t, ok)
	v, ok := c.lookup(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)
	assert.Equal(t, 2, c.len())

	c.forget(func(k int) bool { return k == 1 })
	_, ok = c.lookup(1)
	assert.False(t, ok)
	assert.Equal(t, 1, c.len())
}

func TestCacheForgetDuringLoad(t *testing.T) {
	c := newCache[string, int]("test", 0, nil, strconv.Quote)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int)
	go func() {
		v, err := c.get("k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	c.forget(func(string) bool { return true })

	// A lookup after the forget loads again instead of joining the
	// detached load.
	v, err := c.get("k", func() (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	close(release)
	assert.Equal(t, 1, <-done, "the detached load still answers its caller")

	v, ok := c.lookup("k")
	require.True(t, ok)
	assert.Equal(t, 2, v, "the detached load is not stored")
}

func TestCacheForgetDropsRunningLoad(t *testing.T) {
	c := newCache[string, int]("test", 0, nil, strconv.Quote)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.get("k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		assert.NoError(t, err)
	}()

	<-started
	c.forget(func(k string) bool { return k == "k" })
	close(release)
	<-done

	_, ok := c.lookup("k")
	assert.False(t, ok)
	assert.Zero(t, c.len())
}

func TestMatchKeyFlightKeys(t *testing.T) {
	a := matchKey{path: "a b", line: 1, offset: 2}
	b := matchKey{path: "a", line: 1, offset: 2}
	b.unit.Name = "b"
	assert.NotEqual(t, a.String(), b.String())

	c := matchKey{path: `x" 1`, line: 2}
	d := matchKey{path: "x", line: 1}
	assert.NotEqual(t, c.String(), d.String())
}
