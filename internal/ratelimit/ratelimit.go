// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit spaces outbound requests per source so concurrent
// batch items stay within each upstream's politeness limits.
// Implements: prd002-sources (R5.1-R5.2); docs/ARCHITECTURE § Politeness.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the request spacing applied to a source when the
// configuration does not name one.
const DefaultInterval = time.Second

// Registry hands out one token bucket per source name. A batch shares a
// single Registry across its worker goroutines, so the per-source spacing
// holds no matter how many items target the same source concurrently.
type Registry struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRegistry returns a Registry that spaces requests to each source at
// least interval apart. Non-positive intervals fall back to
// DefaultInterval.
func NewRegistry(interval time.Duration) *Registry {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Registry{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Limiter returns the limiter for name, creating it on first use. The
// bucket allows one request immediately and then refills at the registry
// interval.
func (r *Registry) Limiter(name string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	lim, ok := r.limiters[name]
	if !ok {
		lim = rate.NewLimiter(rate.Every(r.interval), 1)
		r.limiters[name] = lim
	}
	return lim
}

// Wait blocks until a request to name may proceed, or until ctx is
// cancelled. Waiting for one source never delays requests to another.
func (r *Registry) Wait(ctx context.Context, name string) error {
	return r.Limiter(name).Wait(ctx)
}
