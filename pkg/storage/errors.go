// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package storage

import (
	"context"
	"errors"
)

// Error kinds surfaced by stores and the engine. Callers match with
// errors.Is; wrapped causes stay reachable through errors.Unwrap.
var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means the caller passed a malformed argument.
	// Signals a programmer bug; never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStaleTransaction means a write lost a concurrency race and can
	// be retried.
	ErrStaleTransaction = errors.New("stale transaction")

	// ErrStoreUnavailable means the backing store could not serve the
	// request after all retries.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrTimeout means a single store call exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrConstraintViolation means an append collided with an existing
	// row (duplicate session id, duplicate attempt id).
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInternalInvariant means engine state violated one of its own
	// invariants. Signals a programmer bug; never retried.
	ErrInternalInvariant = errors.New("internal invariant violated")

	// ErrInsufficientCatalog is the condition reported when, after all
	// fallbacks, no problems could be produced for a session.
	ErrInsufficientCatalog = errors.New("insufficient catalog")
)

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Retryable reports whether an error kind may be retried with backoff.
// Context cancellation and deadline expiry always propagate.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrStaleTransaction)
}
