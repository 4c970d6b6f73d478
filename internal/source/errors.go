package source

import (
	"context"
	"errors"
	"net"

	"google.golang.org/api/googleapi"
)

// Sentinel errors for the backend failure classes every adapter must
// normalize into. The dispatcher decides retry behavior based on these;
// adapters never retry on their own.
var (
	// ErrNotFound means the requested record does not exist. Surfaced
	// to the reasoning step as an absent result, not a hard failure.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized means the backend rejected the credential (401).
	// The auth manager should be invalidated and the call retried once
	// with a fresh token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited means the backend throttled the call (429).
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient covers network failures, timeouts and 5xx responses.
	ErrTransient = errors.New("transient backend failure")

	// ErrUnsupported is returned by Create on read-only sources.
	ErrUnsupported = errors.New("operation not supported by source")
)

// ClassifyError normalizes a backend error into one of the sentinel
// errors above, wrapping the original for context. A nil error stays nil;
// anything unrecognized is treated as transient so the dispatcher's retry
// budget applies rather than failing the episode outright.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	// Caller cancellation is not a backend failure; leave it alone so
	// the dispatcher does not burn retries on it.
	if errors.Is(err, context.Canceled) {
		return err
	}

	// Already classified.
	for _, sentinel := range []error{ErrNotFound, ErrUnauthorized, ErrRateLimited, ErrTransient, ErrUnsupported} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 404:
			return errors.Join(ErrNotFound, err)
		case apiErr.Code == 401:
			return errors.Join(ErrUnauthorized, err)
		case apiErr.Code == 429:
			return errors.Join(ErrRateLimited, err)
		case apiErr.Code >= 500:
			return errors.Join(ErrTransient, err)
		}
		return errors.Join(ErrTransient, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTransient, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return errors.Join(ErrTransient, err)
	}

	return errors.Join(ErrTransient, err)
}
