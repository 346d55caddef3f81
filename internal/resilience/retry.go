package resilience

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds tuning knobs for a [Retrier].
type RetryConfig struct {
	// MaxAttempts is the total number of calls including the first.
	// Default: 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponentially growing delay. Default: 10s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.
	Multiplier float64
}

// Retrier performs bounded retries with exponential backoff. The zero value
// is not usable; construct with [NewRetrier]. Retrier is stateless between
// Do calls and therefore safe for concurrent use.
type Retrier struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
}

// NewRetrier creates a [Retrier] with the supplied configuration. Zero-value
// config fields are replaced with sensible defaults.
func NewRetrier(cfg RetryConfig) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2
	}
	return &Retrier{
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		multiplier:     cfg.Multiplier,
	}
}

// Do calls fn until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. The backoff sleep between attempts is interruptible by ctx.
// The last error from fn is returned, wrapped with the attempt count;
// a cancellation during backoff returns ctx.Err().
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := r.initialBackoff

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= r.maxAttempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * r.multiplier)
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}
	return fmt.Errorf("after %d attempts: %w", r.maxAttempts, err)
}
