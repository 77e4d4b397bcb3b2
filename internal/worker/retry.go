package worker

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"suppliersync/internal/config"
	"suppliersync/internal/supplier"

	"github.com/rs/zerolog"
)

// RetryPolicy defines exponential backoff parameters.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay(),
		MaxDelay:      cfg.MaxDelay(),
		BackoffFactor: cfg.BackoffFactor,
		Jitter:        cfg.Jitter,
	}
}

// NextDelay returns delay for a given attempt (1-based) with clamping.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	if r.Jitter {
		// half fixed, half random, чтобы ретраи не шли волной
		d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
	}
	return d
}

// Do runs op with classified retries: transient errors (per
// supplier.IsRetryable) are retried up to MaxAttempts, everything else
// returns immediately. An expired token never burns an attempt.
func (r RetryPolicy) Do(ctx context.Context, log zerolog.Logger, opName string, op func(ctx context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !supplier.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := r.NextDelay(attempt)
		log.Warn().Err(err).Str("op", opName).Int("attempt", attempt).Dur("delay", delay).Msg("transient error, will retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s: attempts exhausted: %w", opName, lastErr)
}
