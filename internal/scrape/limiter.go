package scrape

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
	unlimited   bool
}

// NewAdaptiveLimiter creates an adaptive rate limiter. A non-positive rate
// disables limiting.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	if burst <= 0 {
		burst = 1
	}
	if initialRate <= 0 {
		return &AdaptiveLimiter{limiter: rate.NewLimiter(rate.Inf, burst), currentRate: rate.Inf, unlimited: true}
	}
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	if a.unlimited {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate after a 429.
func (a *AdaptiveLimiter) OnRateLimit(host string) {
	if a.unlimited {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Debug("scrape: reducing host rate after 429",
		zap.String("host", host),
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HostLimiters hands out one AdaptiveLimiter per host.
type HostLimiters struct {
	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
	rps      rate.Limit
	burst    int
}

// NewHostLimiters creates a per-host limiter registry.
func NewHostLimiters(rps float64, burst int) *HostLimiters {
	return &HostLimiters{
		limiters: make(map[string]*AdaptiveLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Get returns the limiter for host, creating one if needed.
func (h *HostLimiters) Get(host string) *AdaptiveLimiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	lim, ok := h.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(h.rps, h.burst)
		h.limiters[host] = lim
	}
	return lim
}
