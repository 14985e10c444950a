package endpoint

import "errors"

// Resolution errors. None of these are retryable.
var (
	// ErrInvalidRoute indicates a missing or empty path segment.
	ErrInvalidRoute = errors.New("endpoint: invalid route")

	// ErrUnsupportedServiceType indicates a type outside the ServiceType enumeration.
	ErrUnsupportedServiceType = errors.New("endpoint: unsupported service type")

	// ErrMissingCredential indicates the bypass identifier was used but no credential is configured.
	ErrMissingCredential = errors.New("endpoint: bypass credential not configured")

	// ErrEndpointResolution indicates no URL could be built for the route.
	ErrEndpointResolution = errors.New("endpoint: unable to find service URL")
)
