// Package retry wraps transient operations in bounded exponential backoff.
// It is used around every outbound API call (embedding, LLM, CrossRef) so
// that rate limits and network hiccups do not fail an ingestion run.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/quaero-cli/internal/logger"
)

// Default backoff parameters.
const (
	DefaultMaxAttempts  = 5
	DefaultInitialDelay = 2 * time.Second
	DefaultMultiplier   = 2.0
	DefaultMaxDelay     = 60 * time.Second
)

// Policy describes the backoff schedule for one class of operation.
// The zero value is invalid; use DefaultPolicy or construct explicitly.
type Policy struct {
	// MaxAttempts bounds total tries, including the first.
	MaxAttempts int

	// InitialDelay is the wait after the first failure.
	InitialDelay time.Duration

	// Multiplier scales the delay after each failure.
	Multiplier float64

	// MaxDelay caps the per-attempt delay.
	MaxDelay time.Duration
}

// DefaultPolicy returns the standard schedule: 5 attempts starting at
// 2s, doubling, capped at 60s per wait.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Multiplier:   DefaultMultiplier,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Permanent marks an error as non-retryable. Do wrappers stop
// immediately and return the underlying error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op under the policy, retrying on error with exponential
// backoff. It returns the last error when attempts are exhausted, or
// the context error when cancelled mid-wait.
func (p Policy) Do(ctx context.Context, name string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	// The library's elapsed-time cutoff is disabled; attempts alone
	// bound the retry loop.
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0

	attempts := uint64(p.MaxAttempts)
	if attempts == 0 {
		attempts = DefaultMaxAttempts
	}

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if attempt < int(attempts) {
			logger.Warn("%s failed (attempt %d/%d): %v", name, attempt, attempts, err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, attempts-1), ctx))
}

// DoValue runs op under the policy and returns its value.
func DoValue[T any](ctx context.Context, p Policy, name string, op func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, name, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
