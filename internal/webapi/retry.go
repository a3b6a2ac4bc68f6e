package webapi

import (
	"context"
	"errors"
)

// Retry runs op up to attempts times, returning nil on the first success.
// Earlier failures are masked; the error of the final attempt is returned.
// User cancellation is never retried: a retry cannot un-cancel a transfer,
// and re-running a cancelled upload would resend bytes the user asked to
// stop sending.
//
// The token-expiry recovery and upload-link recovery flows both rely on a
// single repeat of the whole operation, so attempts is 2 everywhere in this
// package. The retry is deliberately blanket otherwise — it repeats even
// failures a retry cannot fix (e.g. a malformed body), matching the
// historical behavior of the protocol's reference client.
func Retry(attempts int, op func() error) error {
	var err error

	for range attempts {
		err = op()
		if err == nil {
			return nil
		}

		// A context cancellation is equivalent to a monitor-reported abort:
		// the http runtime may kill the request before the monitored stream
		// is polled, and that race must not look retryable.
		if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
			return err
		}
	}

	return err
}
