package toolflow

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy describes how to retry a failed operation with exponential
// backoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// Backoff is the delay before the second attempt.
	Backoff time.Duration `json:"backoff" yaml:"backoff"`

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`

	// Multiplier scales the delay after each attempt. Values below 1 are
	// treated as 2.
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`

	// Jitter adds up to this fraction of the delay as random slack.
	Jitter float64 `json:"jitter" yaml:"jitter"`
}

// DefaultRetryPolicy is a conservative policy for network-facing handlers.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     100 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
		Multiplier:  2,
		Jitter:      0.2,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = 100 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 5 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// Retryable reports whether an error is worth retrying. Caller-caused
// failures are not; timeouts and business-logic failures are.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeTimeout, CodeHandler:
		return true
	default:
		return false
	}
}

// Retry runs fn up to policy.MaxAttempts times, sleeping with exponential
// backoff between attempts. It stops early on success, on a non-retryable
// error, or when ctx is done.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (Response, error)) (Response, error) {
	policy = policy.withDefaults()

	var lastErr error
	delay := policy.Backoff
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !Retryable(err) || attempt == policy.MaxAttempts {
			break
		}

		wait := delay
		if policy.Jitter > 0 {
			wait += time.Duration(rand.Float64() * policy.Jitter * float64(delay))
		}
		select {
		case <-ctx.Done():
			return nil, WrapError(CodeTimeout, "retry canceled", ctx.Err())
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * policy.Multiplier)
		if delay > policy.MaxBackoff {
			delay = policy.MaxBackoff
		}
	}
	return nil, lastErr
}
