// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Priority selects the retry budget for a store operation. High-priority
// operations (session assembly reads) retry longer than low-priority ones
// (cache refreshes).
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// RetryPolicy bounds the exponential backoff applied to transient store
// errors.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicies returns the per-priority retry budgets.
func DefaultRetryPolicies() map[Priority]RetryPolicy {
	return map[Priority]RetryPolicy{
		PriorityHigh:   {MaxRetries: 5, InitialDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second, Multiplier: 2.0},
		PriorityNormal: {MaxRetries: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second, Multiplier: 2.0},
		PriorityLow:    {MaxRetries: 1, InitialDelay: 250 * time.Millisecond, MaxDelay: 1 * time.Second, Multiplier: 2.0},
	}
}

// Retrier wraps store calls with bounded exponential backoff. Only
// transient kinds (StoreUnavailable, Timeout, StaleTransaction) are
// retried; context cancellation always propagates immediately.
type Retrier struct {
	policies map[Priority]RetryPolicy
	logger   *zap.Logger
}

// NewRetrier creates a retrier with the given policies. Nil policies fall
// back to DefaultRetryPolicies; a nil logger falls back to a no-op.
func NewRetrier(policies map[Priority]RetryPolicy, logger *zap.Logger) *Retrier {
	if policies == nil {
		policies = DefaultRetryPolicies()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{policies: policies, logger: logger}
}

// Do runs op, retrying transient failures with exponential backoff until
// the policy budget or ctx expires. Unrecoverable exhaustion surfaces as
// ErrStoreUnavailable wrapping the last cause.
func (r *Retrier) Do(ctx context.Context, priority Priority, name string, op func(ctx context.Context) error) error {
	policy, ok := r.policies[priority]
	if !ok {
		policy = r.policies[PriorityNormal]
	}

	var lastErr error
	delay := policy.InitialDelay

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("store operation succeeded after retry",
					zap.String("op", name),
					zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%s (attempt %d/%d): %w", name, attempt+1, policy.MaxRetries+1, ctx.Err())
		}
		if !Retryable(err) {
			return err
		}

		lastErr = err
		if attempt >= policy.MaxRetries {
			break
		}

		r.logger.Warn("store operation failed, retrying",
			zap.String("op", name),
			zap.String("priority", string(priority)),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * policy.Multiplier)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	r.logger.Error("store retries exhausted",
		zap.String("op", name),
		zap.Int("max_retries", policy.MaxRetries),
		zap.Error(lastErr))

	return fmt.Errorf("%s failed after %d attempts: %w: %w",
		name, policy.MaxRetries+1, ErrStoreUnavailable, lastErr)
}
