package utils

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestURLSetNoDuplicates(t *testing.T) {
	s := NewURLSet()

	added := s.Add("https://example.com/1")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("https://example.com/1")
	if added {
		t.Error("second Add of same URL should return false")
	}

	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
	if !s.Contains("https://example.com/1") {
		t.Error("Contains should report the added URL")
	}
}

func TestURLSetConcurrency(t *testing.T) {
	s := NewURLSet()
	var added int64

	pool := NewWorkerPool(10, 0)
	for i := 0; i < 100; i++ {
		url := "https://example.com/same"
		pool.Submit(context.Background(), func() {
			if s.Add(url) {
				atomic.AddInt64(&added, 1)
			}
		})
	}
	pool.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestWorkerPoolRateLimit(t *testing.T) {
	interval := 100 * time.Millisecond
	pool := NewWorkerPool(1, interval)

	var (
		mu         sync.Mutex
		timestamps []time.Time
	)
	for i := 0; i < 3; i++ {
		pool.Submit(context.Background(), func() {
			mu.Lock()
			timestamps = append(timestamps, time.Now())
			mu.Unlock()
		})
	}
	pool.Wait()

	if len(timestamps) != 3 {
		t.Fatalf("ran %d jobs, want 3", len(timestamps))
	}
	// allow scheduler jitter on wake-up
	min := interval * 8 / 10
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		if gap < min {
			t.Errorf("gap between job %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}

func TestWorkerPoolSubmitAfterCancel(t *testing.T) {
	pool := NewWorkerPool(1, 0)
	release := make(chan struct{})
	pool.Submit(context.Background(), func() { <-release })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int64
	if pool.Submit(ctx, func() { atomic.AddInt64(&ran, 1) }) {
		t.Error("Submit should refuse work once the context is cancelled and the pool is full")
	}
	close(release)
	pool.Wait()

	if ran != 0 {
		t.Errorf("cancelled job ran %d times", ran)
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewDiscardLogger()}

	calls := 0
	err := r.Do(context.Background(), "flaky", func() error {
		calls++
		if calls < 2 {
			return context.DeadlineExceeded
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour, Logger: NewDiscardLogger()}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.Do(ctx, "never", func() error {
		calls++
		cancel()
		return context.DeadlineExceeded
	})
	if err != context.Canceled {
		t.Errorf("err: got %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}
