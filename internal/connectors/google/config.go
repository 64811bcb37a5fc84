package google

import (
	"fmt"
	"time"
)

// API base URLs.
const (
	PickerBaseURL  = "https://photospicker.googleapis.com/v1/"
	LibraryBaseURL = "https://photoslibrary.googleapis.com/v1/"
)

// Dispatcher defaults.
const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
	DefaultMultiplier     = 2.0
	DefaultJitter         = 0.5
	DefaultAttemptTimeout = 30 * time.Second
	DefaultMaxPages       = 0
)

// Config configures a Dispatcher.
type Config struct {
	// Service selects the rate limit bucket and labels metrics.
	Service ServiceType
	// BaseURL is prefixed to every relative request path.
	BaseURL string

	// MaxAttempts bounds the HTTP attempts spent on transient failures
	// (429, 5xx, transport errors). The single retry after a forced token
	// refresh on 401 does not count against it.
	MaxAttempts int
	// InitialBackoff is the first retry interval.
	InitialBackoff time.Duration
	// MaxBackoff caps any single retry interval.
	MaxBackoff time.Duration
	// Multiplier grows the interval after each retry.
	Multiplier float64
	// Jitter is the randomization factor in [0, 1].
	Jitter float64
	// AttemptTimeout bounds one HTTP attempt. Zero means no per-attempt timeout.
	AttemptTimeout time.Duration

	// MaxPages fails a listing with domain.ErrPageLimit once it needs more
	// than this many pages. Zero means unlimited.
	MaxPages int

	// RateLimit overrides the default limits for Service when set.
	RateLimit *RateLimitConfig
}

// DefaultConfig returns the default configuration for service at baseURL.
func DefaultConfig(service ServiceType, baseURL string) Config {
	return Config{
		Service:        service,
		BaseURL:        baseURL,
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Multiplier:     DefaultMultiplier,
		Jitter:         DefaultJitter,
		AttemptTimeout: DefaultAttemptTimeout,
		MaxPages:       DefaultMaxPages,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("dispatcher: base URL is required")
	case c.MaxAttempts < 1:
		return fmt.Errorf("dispatcher: max attempts must be at least 1, got %d", c.MaxAttempts)
	case c.InitialBackoff < 0 || c.MaxBackoff < 0:
		return fmt.Errorf("dispatcher: backoff intervals must not be negative")
	case c.Multiplier < 1:
		return fmt.Errorf("dispatcher: multiplier must be at least 1, got %v", c.Multiplier)
	case c.Jitter < 0 || c.Jitter > 1:
		return fmt.Errorf("dispatcher: jitter must be within [0, 1], got %v", c.Jitter)
	case c.AttemptTimeout < 0:
		return fmt.Errorf("dispatcher: attempt timeout must not be negative")
	case c.MaxPages < 0:
		return fmt.Errorf("dispatcher: max pages must not be negative")
	}
	return nil
}
