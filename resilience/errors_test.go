package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrCircuitOpen, "resilience: upstream circuit open"},
		{ErrRateLimitExceeded, "resilience: upstream rate limit exceeded"},
		{ErrBulkheadFull, "resilience: too many concurrent upstream calls"},
		{ErrTimeout, "resilience: upstream call timed out"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestIsRejection(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrCircuitOpen, true},
		{fmt.Errorf("gateway: %w", ErrBulkheadFull), true},
		{ErrRateLimitExceeded, true},
		{ErrTimeout, false},
		{errors.New("boom"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsRejection(tt.err); got != tt.want {
			t.Errorf("IsRejection(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
