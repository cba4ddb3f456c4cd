package utils

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPoolRunsEveryJob(t *testing.T) {
	pool := NewWorkerPool(3, 0)
	results := make([]int, 10)
	for i := range results {
		i := i
		pool.Submit(func() { results[i] = i * i })
	}
	pool.Wait()

	for i, r := range results {
		assert.Equal(t, i*i, r, "job %d", i)
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2, 0)
	var running, peak int64
	var mu sync.Mutex

	for i := 0; i < 8; i++ {
		pool.Submit(func() {
			n := atomic.AddInt64(&running, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&running, -1)
		})
	}
	pool.Wait()

	assert.LessOrEqual(t, peak, int64(2))
}

func TestWorkerPoolZeroWorkersMeansOne(t *testing.T) {
	pool := NewWorkerPool(0, 0)
	var done int64
	pool.Submit(func() { atomic.AddInt64(&done, 1) })
	pool.Wait()
	assert.Equal(t, int64(1), done)
}

func TestWorkerPoolRateLimit(t *testing.T) {
	pace := 50 * time.Millisecond
	pool := NewWorkerPool(1, pace)

	var timestamps []time.Time
	var mu sync.Mutex
	for i := 0; i < 3; i++ {
		pool.Submit(func() {
			mu.Lock()
			timestamps = append(timestamps, time.Now())
			mu.Unlock()
		})
	}
	pool.Wait()

	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		assert.GreaterOrEqual(t, gap, pace, "gap between job %d and %d", i-1, i)
	}
}
