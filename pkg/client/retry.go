package client

import (
	"context"
	"math"
	"math/rand"
	"time"
)

type retryer struct {
	config RetryConfig
}

func newRetryer(config RetryConfig) *retryer {
	return &retryer{config: config}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the budget runs out
func (r *retryer) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	currentInterval := r.config.InitialInterval
	startTime := time.Now()

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}

		if attempt == r.config.MaxRetries || time.Since(startTime) >= r.config.MaxElapsedTime {
			break
		}

		if currentInterval > r.config.MaxInterval {
			currentInterval = r.config.MaxInterval
		}

		timer := time.NewTimer(r.jitter(currentInterval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		currentInterval = time.Duration(float64(currentInterval) * r.config.Multiplier)
	}

	return lastErr
}

func (r *retryer) jitter(interval time.Duration) time.Duration {
	if r.config.RandomizationFactor == 0 {
		return interval
	}

	delta := r.config.RandomizationFactor * float64(interval)
	minInterval := float64(interval) - delta
	maxInterval := float64(interval) + delta

	return time.Duration(math.Max(0, minInterval+rand.Float64()*(maxInterval-minInterval)))
}
