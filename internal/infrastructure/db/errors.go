package db

import (
	"errors"
	"fmt"
)

// ConnectionError reports a failed connection acquisition: pool
// exhausted, database unreachable, or acquire timeout elapsed.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("acquire connection: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RetriesExhaustedError reports that a query or transaction failed on
// every configured attempt. Err holds the last underlying cause.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// IsRetriesExhausted reports whether err is (or wraps) a RetriesExhaustedError.
func IsRetriesExhausted(err error) bool {
	var target *RetriesExhaustedError
	return errors.As(err, &target)
}
