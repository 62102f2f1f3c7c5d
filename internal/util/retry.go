package util

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// DefaultMaxAttempts is the total call cap for transient retries.
const DefaultMaxAttempts = 3

// backoffBase is the unit for exponential backoff. Tests shrink it so retry
// behavior can be exercised without wall-clock waits.
var backoffBase = 2 * time.Second

// jitterMax bounds the random jitter added to each backoff wait.
var jitterMax = time.Second

// rate-limit and overload markers, the two transient error classes. Anything
// else fails fast.
var rateLimitMarkers = []string{"429", "rate limit", "resource_exhausted", "quota"}
var overloadMarkers = []string{"503", "overloaded", "unavailable"}

// IsTransient reports whether err looks like a rate-limit or service-overload
// failure worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	for _, m := range overloadMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// RetryTransient calls fn up to maxAttempts times, waiting
// 2^attempt * backoffBase plus jitter between attempts. Only transient
// errors are retried; any other error, or exhaustion of the cap, propagates
// the last error unchanged. Context cancellation aborts the wait.
func RetryTransient(ctx context.Context, maxAttempts int, fn func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || attempt == maxAttempts-1 {
			return lastErr
		}

		wait := backoffFor(attempt)
		slog.Warn("Transient upstream error, retrying",
			"attempt", attempt+1, "wait", wait, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}

// backoffFor computes the wait before retrying the given 0-indexed attempt.
func backoffFor(attempt int) time.Duration {
	wait := time.Duration(1<<attempt) * backoffBase
	if jitterMax > 0 {
		wait += time.Duration(rand.Int63n(int64(jitterMax)))
	}
	return wait
}
