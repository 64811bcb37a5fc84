package google

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ServiceType identifies a Google Photos API surface for rate limiting purposes.
type ServiceType string

const (
	// ServicePicker is the Photos Picker API.
	ServicePicker ServiceType = "picker"
	// ServiceLibrary is the Photos Library API.
	ServiceLibrary ServiceType = "library"
	// ServiceMedia is media byte downloads from baseUrl.
	ServiceMedia ServiceType = "media"
)

// RateLimitConfig holds rate limiting configuration for a service.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// BurstSize is the maximum burst size.
	BurstSize int `mapstructure:"burst_size"`
}

// DefaultRateLimits provides conservative defaults for each service.
// These are well below Google's per-user quotas.
var DefaultRateLimits = map[ServiceType]RateLimitConfig{
	ServicePicker:  {RequestsPerSecond: 5.0, BurstSize: 10},
	ServiceLibrary: {RequestsPerSecond: 5.0, BurstSize: 10},
	ServiceMedia:   {RequestsPerSecond: 10.0, BurstSize: 20},
}

// sleepFunc blocks for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RateLimiter provides rate limiting for Google API requests.
// It uses a token bucket plus a shared backoff window set from Retry-After,
// so every dispatcher sharing the limiter holds off together.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	service ServiceType
	sleep   sleepFunc
}

// NewRateLimiter creates a new rate limiter for the specified service.
func NewRateLimiter(service ServiceType) *RateLimiter {
	cfg, ok := DefaultRateLimits[service]
	if !ok {
		cfg = RateLimitConfig{RequestsPerSecond: 5.0, BurstSize: 10}
	}
	l := NewRateLimiterWithConfig(cfg)
	l.service = service
	return l
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
// A non-positive rate disables the token bucket.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		sleep:   sleepCtx,
	}
}

// Service returns the service the limiter was created for.
func (r *RateLimiter) Service() ServiceType {
	return r.service
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff window set by RecordRetryAfter.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if d := r.Backoff(); d > 0 {
		if err := r.sleep(ctx, d); err != nil {
			return err
		}
	}
	return r.limiter.Wait(ctx)
}

// RecordRetryAfter opens a backoff window of d, typically from a Retry-After
// header. A shorter window never shortens one already open.
func (r *RateLimiter) RecordRetryAfter(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if at := time.Now().Add(d); at.After(r.retryAt) {
		r.retryAt = at
	}
}

// Backoff returns how long the current backoff window still lasts.
func (r *RateLimiter) Backoff() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Until(r.retryAt)
}

// Allow checks if a request can be made immediately without blocking.
func (r *RateLimiter) Allow() bool {
	if r.Backoff() > 0 {
		return false
	}
	return r.limiter.Allow()
}
