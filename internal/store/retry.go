package store

import (
	"context"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/halviala/als-platform/internal/faults"
)

const maxAttempts = 3

// initialRetryDelay grows by 1.5x per attempt: 0.5s, 0.75s, 1.125s
const initialRetryDelay = 500 * time.Millisecond

// withRetry runs op, retrying only locked/busy failures with bounded
// exponential backoff. All other failures surface immediately as a
// StorageError with the cause attached.
func (s *Store) withRetry(ctx context.Context, opName string, op func() error) error {
	delay := initialRetryDelay

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !isBusy(lastErr) {
			return &faults.StorageError{Op: opName, Cause: lastErr}
		}

		if attempt < maxAttempts {
			s.logger.Warn("Database busy, retrying",
				"op", opName,
				"attempt", attempt,
				"delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &faults.StorageError{Op: opName, Cause: ctx.Err()}
			}
			delay = delay * 3 / 2
		}
	}

	return &faults.StorageError{Op: opName, Retryable: true, Cause: lastErr}
}

// isBusy reports whether err is a transient lock-contention failure
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
