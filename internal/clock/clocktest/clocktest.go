// Package clocktest provides a manually advanced clock.Clock for tests.
package clocktest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"

	"github.com/vivianur/hackathon-web/internal/clock"
)

// Fake is a clock.Clock driven by a quartz mock. Advance fires every timer
// that becomes due, in deadline order, and returns once their callbacks
// have finished. Timers armed by a callback fire in the same Advance when
// they fall due before the target.
type Fake struct {
	clock.Clock

	mock *quartz.Mock

	mu    sync.Mutex
	armed map[*fakeTimer]struct{}
}

type fakeTimer struct {
	clock *Fake
	timer clock.Timer
}

// NewFake returns a Fake positioned at start.
func NewFake(tb testing.TB, start time.Time) *Fake {
	tb.Helper()
	mock := quartz.NewMock(tb)
	mock.Set(start.UTC()).MustWait(context.Background())
	return &Fake{
		Clock: clock.Wrap(mock),
		mock:  mock,
		armed: make(map[*fakeTimer]struct{}),
	}
}

func (c *Fake) AfterFunc(d time.Duration, f func()) clock.Timer {
	t := &fakeTimer{clock: c}
	c.mu.Lock()
	c.armed[t] = struct{}{}
	c.mu.Unlock()

	t.timer = c.Clock.AfterFunc(d, func() {
		c.disarm(t)
		f()
	})
	return t
}

// Advance moves the clock forward by d.
func (c *Fake) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// Set moves the clock forward to target. A target in the past is ignored.
func (c *Fake) Set(target time.Time) {
	ctx := context.Background()
	for {
		next, ok := c.mock.Peek()
		if !ok || c.mock.Now().Add(next).After(target) {
			break
		}
		_, waiter := c.mock.AdvanceNext()
		waiter.MustWait(ctx)
	}
	if rest := target.Sub(c.mock.Now()); rest > 0 {
		c.mock.Advance(rest).MustWait(ctx)
	}
}

// Pending reports how many timers are armed and not yet fired or stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.armed)
}

func (c *Fake) disarm(t *fakeTimer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.armed, t)
}

func (t *fakeTimer) Stop() bool {
	if !t.timer.Stop() {
		return false
	}
	t.clock.disarm(t)
	return true
}
