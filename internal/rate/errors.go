package rate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited matches every [*LimitedError].
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// LimitedError reports an exhausted budget and how long until its window
// resets.
type LimitedError struct {
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *LimitedError) Is(target error) bool { return target == ErrRateLimited }

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}
