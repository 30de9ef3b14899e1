// Package clock abstracts wall-clock reads and one-shot timers so that
// time-driven components can be exercised deterministically.
package clock

import (
	"time"

	"github.com/coder/quartz"
)

// Clock is a source of wall-clock time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable one-shot timer handle.
type Timer interface {
	// Stop cancels the timer. It reports whether the call stopped the timer
	// before it fired.
	Stop() bool
}

// New returns a Clock backed by the system clock.
func New() Clock {
	return Wrap(quartz.NewReal())
}

// Wrap adapts a quartz clock. Times are reported in UTC.
func Wrap(clk quartz.Clock) Clock {
	return quartzClock{clk: clk}
}

type quartzClock struct {
	clk quartz.Clock
}

func (c quartzClock) Now() time.Time {
	return c.clk.Now().UTC()
}

func (c quartzClock) AfterFunc(d time.Duration, f func()) Timer {
	return quartzTimer{timer: c.clk.AfterFunc(d, f)}
}

type quartzTimer struct {
	timer *quartz.Timer
}

func (t quartzTimer) Stop() bool {
	return t.timer.Stop()
}
