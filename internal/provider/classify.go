// Package provider holds what the text-improvement adapters share: request
// defaults and the mapping from transport and SDK failures onto the
// core error taxonomy.
package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/book-expert/text-improver/internal/core"
)

const (
	// MaxTokens bounds every rewrite request.
	MaxTokens = 1024

	// DefaultTimeout applies when no http.Client is supplied.
	DefaultTimeout = 30 * time.Second
)

// StatusFunc extracts the HTTP status code from an SDK-specific error.
type StatusFunc func(err error) (int, bool)

// Classify maps err onto the taxonomy. Transport failures and timeouts become
// NetworkFailure, 401/403 become InvalidCredential, other upstream statuses
// become NetworkFailure and everything else (decode errors) MalformedResponse.
func Classify(err error, status StatusFunc) error {
	if err == nil {
		return nil
	}

	if core.KindOf(err) != core.KindUnknown {
		return err
	}

	if isTransportError(err) {
		return core.NewError(core.KindNetworkFailure, err)
	}

	if status != nil {
		code, ok := status(err)
		if ok {
			return core.NewError(KindForStatus(code), err)
		}
	}

	return core.NewError(core.KindMalformedResponse, err)
}

// KindForStatus maps an HTTP error status onto the taxonomy.
func KindForStatus(code int) core.ErrorKind {
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return core.KindInvalidCredential
	}

	return core.KindNetworkFailure
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}

// HTTPClient returns client, or a new client with DefaultTimeout when nil.
func HTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}

	return &http.Client{Timeout: DefaultTimeout}
}
