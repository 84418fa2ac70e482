package cachutil

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLoadsOnce(t *testing.T) {
	var loads atomic.Int32
	c := New(time.Minute, func(k int) (string, error) {
		loads.Add(1)
		return "v" + string(rune('0'+k)), nil
	})

	for i := 0; i < 3; i++ {
		v, err := c.Get(1)
		require.NoError(t, err)
		assert.Equal(t, "v1", v)
	}
	assert.EqualValues(t, 1, loads.Load())

	c.Invalidate()
	_, _ = c.Get(1)
	assert.EqualValues(t, 2, loads.Load())
}

func TestCacheSuppressesConcurrentLoads(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	c := New(0, func(k string) (int, error) {
		loads.Add(1)
		<-release
		return 42, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get("k")
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.EqualValues(t, 1, loads.Load())
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	var loads atomic.Int32
	c := New(time.Minute, func(string) (*int, error) {
		loads.Add(1)
		return nil, errors.New("boom")
	})
	_, err := c.Get("k")
	require.Error(t, err)
	_, err = c.Get("k")
	require.Error(t, err)
	assert.EqualValues(t, 2, loads.Load())
}
