package services

import (
	"math/rand"
	"time"
)

// RetryPolicy bounds the sequential retry loop around model calls. MaxRetries
// counts retries after the first attempt, so MaxRetries=2 means at most three
// calls. Jitter is a fraction of the computed delay added randomly on top.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
}

// DefaultRetryPolicy matches the budget the bot ran with in production:
// three attempts total, 2s/4s backoff with a little jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     0.2,
	}
}

// Backoff returns the delay before retry number attempt (1-based): exponential
// doubling from BaseDelay, capped at MaxDelay, plus jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}
