package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline error taxonomy.
var (
	// ErrInsufficientData means an indicator did not have enough history.
	// Strategy-local skip, never an instrument failure.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNoSentimentData means no sentiment scores exist for the window.
	// Distinguished from a valid neutral score of zero.
	ErrNoSentimentData = errors.New("no sentiment data")
)

// TransientError wraps failures worth retrying with backoff: rate limits,
// timeouts, upstream 5xx.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// PermanentError wraps failures that retrying cannot fix: unknown
// instrument, malformed response. The instrument is marked Failed for
// the run.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(op string, err error) error {
	return &PermanentError{Op: op, Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is not worth retrying.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
