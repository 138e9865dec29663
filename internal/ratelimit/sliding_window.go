package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow implements an in-memory sliding window rate limiter. This is
// the default backend and the fallback when Redis is unavailable.
type SlidingWindow struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   Limit
	done    chan struct{}
}

type window struct {
	requests []time.Time
}

// NewSlidingWindow creates a new in-memory sliding window rate limiter
func NewSlidingWindow(limit Limit) *SlidingWindow {
	sw := &SlidingWindow{
		windows: make(map[string]*window),
		limit:   limit,
		done:    make(chan struct{}),
	}
	go sw.cleanupRoutine()
	return sw
}

// Check performs a rate limit check for the key.
func (sw *SlidingWindow) Check(ctx context.Context, key string) (*Result, error) {
	now := time.Now()
	cutoff := now.Add(-sw.limit.Window)

	sw.mu.Lock()
	defer sw.mu.Unlock()

	w, ok := sw.windows[key]
	if !ok {
		w = &window{}
		sw.windows[key] = w
	}

	// Drop requests that fell out of the window.
	kept := w.requests[:0]
	for _, t := range w.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.requests = kept

	result := &Result{
		Limit: sw.limit.max(),
		Count: len(w.requests),
	}
	if len(w.requests) >= sw.limit.max() {
		result.RetryAfter = w.requests[0].Add(sw.limit.Window).Sub(now)
		if result.RetryAfter < 0 {
			result.RetryAfter = 0
		}
		return result, nil
	}

	w.requests = append(w.requests, now)
	result.Allowed = true
	result.Count = len(w.requests)
	result.Remaining = sw.limit.max() - len(w.requests)
	return result, nil
}

// Close stops the background cleanup routine.
func (sw *SlidingWindow) Close() error {
	close(sw.done)
	return nil
}

// cleanupRoutine periodically drops idle keys so the map does not grow
// without bound.
func (sw *SlidingWindow) cleanupRoutine() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-sw.limit.Window)
			sw.mu.Lock()
			for key, w := range sw.windows {
				if len(w.requests) == 0 || !w.requests[len(w.requests)-1].After(cutoff) {
					delete(sw.windows, key)
				}
			}
			sw.mu.Unlock()
		}
	}
}
