package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WorkerPool runs jobs on a bounded number of goroutines, optionally pacing
// job starts with a rate limiter.
type WorkerPool struct {
	semaphore chan struct{}
	limiter   *rate.Limiter
	wg        sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool with the given concurrency. A positive
// interval spaces job starts at least that far apart.
func NewWorkerPool(maxWorkers int, interval time.Duration) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		semaphore: make(chan struct{}, maxWorkers),
		limiter:   NewLimiter(interval),
	}
}

// NewLimiter returns a limiter allowing one event per interval, or an
// unlimited one when interval is not positive.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Submit enqueues a job for execution in the pool. It returns false without
// running the job when ctx is done before a slot frees up.
func (wp *WorkerPool) Submit(ctx context.Context, job func()) bool {
	select {
	case wp.semaphore <- struct{}{}:
	case <-ctx.Done():
		return false
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		if err := wp.limiter.Wait(ctx); err != nil {
			return
		}
		job()
	}()
	return true
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// URLSet is a thread-safe set for tracking visited URLs.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Contains returns true if the URL has already been visited.
func (s *URLSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[url]
	return exists
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
