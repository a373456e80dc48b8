package dedup_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/dedup"
)

func TestGroup_Do_SingleCallRuns(t *testing.T) {
	g := dedup.New()

	v, shared, err := g.Do(context.Background(), "k", func() (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.False(t, shared)
}

func TestGroup_Do_ConcurrentCallsShareOneExecution(t *testing.T) {
	g := dedup.New()

	var calls int32
	start := make(chan struct{})

	const n = 20
	var wg sync.WaitGroup
	results := make([]any, n)
	shares := make([]bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			v, shared, err := g.Do(context.Background(), "same-key", func() (any, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(20 * time.Millisecond)
				return "result", nil
			})
			require.NoError(t, err)
			results[i] = v
			shares[i] = shared
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "fn should execute exactly once for concurrent identical keys")
	for i := 0; i < n; i++ {
		assert.Equal(t, "result", results[i])
	}

	sharedCount := 0
	for _, s := range shares {
		if s {
			sharedCount++
		}
	}
	assert.Equal(t, n-1, sharedCount, "exactly one caller should have actually executed fn")
}

func TestGroup_Do_DifferentKeysRunIndependently(t *testing.T) {
	g := dedup.New()

	var calls int32
	fn := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	_, _, err := g.Do(context.Background(), "a", fn)
	require.NoError(t, err)
	_, _, err = g.Do(context.Background(), "b", fn)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGroup_Forget(t *testing.T) {
	g := dedup.New()
	done := make(chan struct{})

	go func() {
		_, _, _ = g.Do(context.Background(), "k", func() (any, error) {
			<-done
			return 1, nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	g.Forget("k")

	var calls int32
	go func() {
		_, _, _ = g.Do(context.Background(), "k", func() (any, error) {
			atomic.AddInt32(&calls, 1)
			return 2, nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	close(done)
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "Forget should let a new call for the same key run independently")
}
