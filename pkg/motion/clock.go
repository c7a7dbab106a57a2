package motion

import (
	"context"
	"time"
)

// Clock is the time source for every delay the engine takes. Tests
// inject a fake to run sequences without waiting.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns a Clock backed by the time package.
func RealClock() Clock { return realClock{} }

// sleep waits for d or until ctx is done. A done context reports
// ErrStopped.
func sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if err := stopped(ctx); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return stopped(ctx)
	case <-clock.After(d):
		return nil
	}
}
