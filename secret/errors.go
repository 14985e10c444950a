package secret

import "errors"

var (
	// ErrMissingEnv indicates ${VAR} references an unset variable.
	ErrMissingEnv = errors.New("secret: missing required environment variables")

	// ErrProviderNotRegistered indicates a reference names an unknown provider.
	ErrProviderNotRegistered = errors.New("secret: provider is not registered")

	// ErrEmptySecret indicates a strict resolver received an empty value.
	ErrEmptySecret = errors.New("secret: resolved value is empty")

	// ErrNotFound indicates the provider has no value for the reference.
	ErrNotFound = errors.New("secret: not found")

	// ErrInvalidRegistration indicates an empty provider name or nil factory.
	ErrInvalidRegistration = errors.New("secret: invalid provider registration")
)
