// Package ratelimit provides sliding window rate limiting for the HTTP API,
// in-memory by default with an optional Redis backend for multi-instance
// deployments.
package ratelimit

import (
	"context"
	"time"
)

// Result represents the outcome of a rate limit check
type Result struct {
	Allowed    bool          `json:"allowed"`
	Count      int           `json:"count"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
}

// Limiter checks whether a request identified by key may proceed.
type Limiter interface {
	Check(ctx context.Context, key string) (*Result, error)
	Close() error
}

// Limit describes one sliding window: at most Requests plus Burst requests
// per Window.
type Limit struct {
	Requests int           `json:"requests"`
	Burst    int           `json:"burst"`
	Window   time.Duration `json:"window"`
}

func (l Limit) max() int {
	return l.Requests + l.Burst
}
