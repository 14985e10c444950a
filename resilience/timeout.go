package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Timeout runs op with a deadline of d. If the deadline fires and op fails,
// the error wraps ErrTimeout. A canceled parent context is returned as is.
// Non-positive d runs op without a deadline.
func Timeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := op(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, d, err)
	}
	return err
}
