package resilience

import "errors"

var (
	// ErrCircuitOpen rejects a call while the upstream's circuit is open.
	ErrCircuitOpen = errors.New("resilience: upstream circuit open")

	// ErrRateLimitExceeded rejects a call when no token is available.
	ErrRateLimitExceeded = errors.New("resilience: upstream rate limit exceeded")

	// ErrBulkheadFull rejects a call when every upstream slot is taken.
	ErrBulkheadFull = errors.New("resilience: too many concurrent upstream calls")

	// ErrTimeout wraps a call that outlived its deadline.
	ErrTimeout = errors.New("resilience: upstream call timed out")
)

// IsRejection reports whether err means the call was never attempted.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrBulkheadFull)
}
