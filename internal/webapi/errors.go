// Package webapi implements the client side of the wingufile Web API v2:
// authenticated transport, session login, content-addressed directory and
// file resolution, and monitored streaming transfers.
package webapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Sentinel errors for failure classification.
// Use errors.Is(err, webapi.ErrNetwork) etc. to check.
var (
	// ErrNetwork covers connectivity, timeout, and transport-level failures,
	// including non-200 responses that carried no server message.
	ErrNetwork = errors.New("webapi: network failure")

	// ErrMalformedResponse marks protocol violations: unparseable bodies,
	// missing oid headers, download links that are not quoted http(s) URLs.
	ErrMalformedResponse = errors.New("webapi: malformed server response")

	// ErrCancelled is returned when a progress monitor reports cancellation
	// mid-stream. It is distinguishable from I/O failure so callers can
	// report "cancelled by user" instead of a network error.
	ErrCancelled = errors.New("webapi: transfer cancelled by user")

	// ErrTransfer marks a local filesystem step that failed after the
	// network transfer succeeded, e.g. renaming a temp file into place.
	ErrTransfer = errors.New("webapi: local transfer step failed")

	// ErrUnknown is the fallback for unexpected conditions, e.g. an
	// upload-link response that is not recognizable as a URL.
	ErrUnknown = errors.New("webapi: unknown failure")
)

// StatusPasswordRequired is the server's convention for "this repository is
// encrypted and needs a password before its contents can be read".
const StatusPasswordRequired = 440

// maxErrorBody caps how much of an error response body is read for messages.
const maxErrorBody = 4096

// AuthError is a non-200 response that carried a server message. The status
// code is part of the contract: 440 means a repository password is required,
// 404 on a directory fetch means the path was deleted remotely.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("webapi: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsPasswordRequired reports whether err is an AuthError with the
// password-required status code.
func IsPasswordRequired(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.StatusCode == StatusPasswordRequired
}

// IsNotFound reports whether err is an AuthError for a path that no longer
// exists on the server.
func IsNotFound(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// transportSentinel classifies a failed http.Client.Do. A context
// cancellation is the transport-level shape of a user abort (the http
// runtime's context watchdog can kill the request before the monitored
// stream is next polled), so it maps to ErrCancelled; everything else is
// a network failure.
func transportSentinel(err error) error {
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}

	return ErrNetwork
}

// errorFromResponse classifies a non-200 response. A server message yields
// an AuthError carrying the status code; a silent failure is indistinguishable
// from a broken connection and is classified as ErrNetwork.
// The response body is consumed but not closed.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best-effort read for error message

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		// Fall back to the reason phrase ("404 Not Found" -> "Not Found").
		msg = strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	}

	if msg == "" {
		return fmt.Errorf("HTTP %d with no server message: %w", resp.StatusCode, ErrNetwork)
	}

	return &AuthError{StatusCode: resp.StatusCode, Message: msg}
}
