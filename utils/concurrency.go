package utils

import (
	"sync"
	"time"
)

// WorkerPool runs submitted jobs on at most maxWorkers goroutines, optionally
// spacing job starts by a minimum interval.
type WorkerPool struct {
	semaphore chan struct{}
	wg        sync.WaitGroup
	pace      time.Duration

	mu        sync.Mutex
	lastStart time.Time
}

// NewWorkerPool creates a WorkerPool. A maxWorkers below 1 is treated as 1 and
// a zero pace disables spacing.
func NewWorkerPool(maxWorkers int, pace time.Duration) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		semaphore: make(chan struct{}, maxWorkers),
		pace:      pace,
	}
}

// Submit blocks until a worker slot is free, then runs job on its own goroutine.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		wp.enforcePace()
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) enforcePace() {
	if wp.pace <= 0 {
		return
	}
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.lastStart.IsZero() {
		if elapsed := time.Since(wp.lastStart); elapsed < wp.pace {
			time.Sleep(wp.pace - elapsed)
		}
	}
	wp.lastStart = time.Now()
}
