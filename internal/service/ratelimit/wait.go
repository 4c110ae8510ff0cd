package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinValue/internal/domain/repository"
)

// ErrLimited is returned when no slot frees up within the allowed wait.
var ErrLimited = errors.New("rate limited")

const pollInterval = 50 * time.Millisecond

// Wait blocks until l allows key, ctx ends or maxWait elapses.
func Wait(ctx context.Context, l repository.RateLimiter, key string, maxWait time.Duration) error {
	if l == nil {
		return nil
	}
	deadline := time.Now().Add(maxWait)
	for {
		ok, err := l.Allow(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLimited, key)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
