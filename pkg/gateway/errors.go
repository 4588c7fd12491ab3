package gateway

import (
	"context"
	"errors"

	"mercator-hq/ganymede/pkg/backend"
	"mercator-hq/ganymede/pkg/protocol"
)

// wireError maps a backend failure onto its wire error code and message.
// Backend error text is preserved for diagnosable classes; anything
// unrecognized collapses to an internal error so provider internals do not
// leak to clients.
func wireError(err error) (int, string) {
	var authErr *backend.AuthError
	if errors.As(err, &authErr) {
		return protocol.CodeBackendAuth, authErr.Error()
	}

	var rateErr *backend.RateLimitError
	if errors.As(err, &rateErr) {
		return protocol.CodeBackendRateLimited, rateErr.Error()
	}

	var filterErr *backend.ContentFilteredError
	if errors.As(err, &filterErr) {
		return protocol.CodeContentFiltered, filterErr.Error()
	}

	var timeoutErr *backend.TimeoutError
	if errors.As(err, &timeoutErr) {
		return protocol.CodeBackendFailure, timeoutErr.Error()
	}

	var backendErr *backend.BackendError
	if errors.As(err, &backendErr) {
		return protocol.CodeBackendFailure, backendErr.Error()
	}

	var parseErr *backend.ParseError
	if errors.As(err, &parseErr) {
		return protocol.CodeBackendFailure, "backend returned an unparseable response"
	}

	var streamErr *backend.StreamError
	if errors.As(err, &streamErr) {
		return protocol.CodeBackendFailure, streamErr.Error()
	}

	return protocol.CodeInternalError, "internal error"
}

// isCancellation reports whether a backend failure was caused by the
// request's own context being cancelled.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
