package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonwraymond/graphcache/endpoint"
	"github.com/jonwraymond/graphcache/normalize"
)

var (
	// ErrUpstream indicates the upstream call failed, answered non-2xx, or
	// returned a body that is not JSON. Such answers are never cached.
	ErrUpstream = errors.New("gateway: upstream request failed")

	// ErrCacheStore indicates a cache store read or write failed. It never
	// aborts a request.
	ErrCacheStore = errors.New("gateway: cache store failure")

	// ErrInvalidRequest indicates a request body or parameters that cannot be decoded.
	ErrInvalidRequest = errors.New("gateway: invalid request")

	// ErrNilResolver indicates a Dispatcher was configured without a resolver.
	ErrNilResolver = errors.New("gateway: resolver is nil")

	// ErrNilStore indicates a Dispatcher was configured without a cache store.
	ErrNilStore = errors.New("gateway: cache store is nil")
)

// StatusError is a non-2xx upstream answer. It matches ErrUpstream.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d", ErrUpstream, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrUpstream }

// IsUpstreamFailure reports whether err should count against an upstream's
// circuit. Transport errors, timeouts, 5xx answers and invalid bodies do.
// 4xx answers reflect the caller (a bad key, a rejected query) and do not,
// nor do client cancellation and requests that were never sent.
func IsUpstreamFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidRequest) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status < 400 || se.Status > 499
	}
	return true
}

// GenericErrorBody is the only error body clients ever see. Diagnostics stay
// in the logs.
const GenericErrorBody = `{"errors":[{"message":"Unexpected error."}]}`

// StatusCode maps a dispatch error to the HTTP status returned to the client.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, endpoint.ErrInvalidRoute),
		errors.Is(err, endpoint.ErrUnsupportedServiceType),
		errors.Is(err, normalize.ErrInvalidQuery),
		errors.Is(err, normalize.ErrOperationNotFound):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstream), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
