package storage

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by repository lookups that match nothing.
// Callers translate it into a resource-specific error at the API boundary.
var ErrNotFound = errors.New("not found")

// ErrRetryable marks a storage failure as transient. Backends wrap it
// around errors they know to be worth retrying; IsRetryable also classifies
// raw driver errors by message for drivers that expose no typed errors.
var ErrRetryable = errors.New("retryable storage error")

// retryableFragments are driver-message substrings treated as transient.
// modernc.org/sqlite surfaces SQLITE_BUSY and SQLITE_LOCKED as plain
// strings, so classification has to happen on the message.
var retryableFragments = []string{
	"database is locked",
	"database table is locked",
	"connection reset",
	"context deadline exceeded",
}

// IsRetryable reports whether the error is worth retrying with backoff.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRetryable) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
