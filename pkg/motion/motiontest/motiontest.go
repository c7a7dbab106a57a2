// Package motiontest provides an in-memory link and an instant clock for
// tests of code built on the motion engine.
package motiontest

import (
	"context"
	"sync"
	"time"
)

// Link records every line sent to it. The zero value accepts all lines.
type Link struct {
	mu     sync.Mutex
	lines  []string
	failAt map[int]error

	// OnSend, if set, runs after a line is recorded, with its 1-based
	// position. Tests use it to stop an activity at a precise frame.
	OnSend func(n int, line string)
}

// FailAt makes the nth send (1-based) fail with err. The failed line is
// not recorded.
func (l *Link) FailAt(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAt == nil {
		l.failAt = make(map[int]error)
	}
	l.failAt[n] = err
}

// SendLine implements motion.Link.
func (l *Link) SendLine(ctx context.Context, line string) error {
	l.mu.Lock()
	n := len(l.lines) + 1
	if err, ok := l.failAt[n]; ok {
		delete(l.failAt, n)
		l.mu.Unlock()
		return err
	}
	l.lines = append(l.lines, line)
	onSend := l.OnSend
	l.mu.Unlock()

	if onSend != nil {
		onSend(n, line)
	}
	return nil
}

// Lines returns a copy of the recorded lines.
func (l *Link) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Clock fires every wait immediately and records the requested durations.
type Clock struct {
	mu    sync.Mutex
	waits []time.Duration
}

// After implements motion.Clock.
func (c *Clock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

// Waits returns a copy of the recorded durations.
func (c *Clock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// Total returns the sum of all recorded waits.
func (c *Clock) Total() time.Duration {
	var total time.Duration
	for _, d := range c.Waits() {
		total += d
	}
	return total
}
