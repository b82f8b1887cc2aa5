package geocoding

import (
	"context"
	"errors"
	"log"
	"time"
)

// RetryPolicy is a bounded exponential backoff
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy retries three times starting at one second
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2,
	}
}

// Backoff returns the wait after the given failed attempt (1-based)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= mult
		if p.MaxBackoff > 0 && time.Duration(d) >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return time.Duration(d)
}

// Retryable reports whether an error is worth another attempt. Empty result
// sets and malformed responses are final.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var gerr *ErrGeocodingFailed
	if errors.As(err, &gerr) {
		return gerr.Temporary
	}
	return true
}

// Do runs fn until it succeeds, returns a final error or the attempts run out
func (p RetryPolicy) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			if i > 1 {
				log.Printf("[GEOCODING] Success after %d attempt(s): %s", i, label)
			}
			return nil
		}
		if !Retryable(lastErr) || i == attempts {
			break
		}

		backoff := p.Backoff(i)
		log.Printf("[GEOCODING] Retry %d/%d: %s backoff=%v err=%v", i, attempts, label, backoff, lastErr)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
