// Package alert decides when to surface cognitive-support alerts from the
// focus timer's transitions: break suggestions during long focus runs and
// milestone celebrations for completed focus sessions.
package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/vivianur/hackathon-web/internal/clock"
	"github.com/vivianur/hackathon-web/internal/model"
	"github.com/vivianur/hackathon-web/internal/timer"
)

const (
	DefaultEstimatedFallback = 25 * time.Minute
	DefaultLongSession       = 30 * time.Minute
	DefaultContinuedSession  = 30 * time.Minute
	DefaultMilestoneEvery    = 4
)

const (
	estimatedTimeMessage    = "You reached the estimated time for this task. How about a gentle break?"
	longSessionMessage      = "You have been focused for quite a while. A break can help."
	continuedSessionMessage = "You kept going for a long time. A break now can help your mind rest."
	milestoneMessageFormat  = "Congratulations! You completed %d focus sessions!"
)

type Config struct {
	EstimatedFallback time.Duration
	LongSession       time.Duration
	ContinuedSession  time.Duration
	MilestoneEvery    int
}

func DefaultConfig() Config {
	return Config{
		EstimatedFallback: DefaultEstimatedFallback,
		LongSession:       DefaultLongSession,
		ContinuedSession:  DefaultContinuedSession,
		MilestoneEvery:    DefaultMilestoneEvery,
	}
}

// Notifier is called with every alert that becomes pending. It runs with the
// scheduler lock held and must not call back into the Scheduler.
type Notifier func(model.Alert)

// Scheduler owns the pending alert for one user. At most one alert is
// pending; one more may wait in the next slot and is promoted on dismissal.
type Scheduler struct {
	mu     sync.Mutex
	clock  clock.Clock
	cfg    Config
	notify Notifier

	enabled bool
	closed  bool
	pending *model.Alert
	next    *model.Alert

	// run increments on every new focus run; timer callbacks armed for an
	// older run are ignored.
	run            int
	inFocus        bool
	estimated      clock.Timer
	longSession    clock.Timer
	continued      clock.Timer
	continuedArmed bool
	lastCelebrated int
}

func NewScheduler(clk clock.Clock, cfg Config, enabled bool, notify Notifier) *Scheduler {
	if cfg.EstimatedFallback <= 0 {
		cfg.EstimatedFallback = DefaultEstimatedFallback
	}
	if cfg.LongSession <= 0 {
		cfg.LongSession = DefaultLongSession
	}
	if cfg.ContinuedSession <= 0 {
		cfg.ContinuedSession = DefaultContinuedSession
	}
	if cfg.MilestoneEvery <= 0 {
		cfg.MilestoneEvery = DefaultMilestoneEvery
	}
	return &Scheduler{
		clock:   clk,
		cfg:     cfg,
		notify:  notify,
		enabled: enabled,
	}
}

// Observe reacts to a timer transition. It is meant to be registered with
// timer.Timer.Subscribe.
func (s *Scheduler) Observe(change timer.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	wasInFocus := s.inFocus
	s.inFocus = change.Next.InFocus()

	newRun := s.inFocus && (change.Op == timer.OpStartFocus || change.Op == timer.OpRestore || !wasInFocus)
	if !s.inFocus || newRun {
		s.cancelFocusTimersLocked()
	}
	if newRun {
		s.armFocusRunLocked(change)
	}

	if change.Op == timer.OpRestore {
		// Milestones reached before a reload were already surfaced.
		s.lastCelebrated = change.Next.SessionCount
		return
	}
	if change.Next.SessionCount > change.Prev.SessionCount {
		s.celebrateLocked(change.Next.SessionCount)
	}
}

// SetEnabled applies the user's cognitive-alerts preference. Disabling drops
// the pending and queued alerts for good.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	if !enabled {
		s.pending = nil
		s.next = nil
	}
}

func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Pending returns a copy of the pending alert, or nil.
func (s *Scheduler) Pending() *model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || !s.enabled {
		return nil
	}
	alert := *s.pending
	return &alert
}

// Dismiss acknowledges the pending alert. Dismissing the estimated-time
// alert during an ongoing focus run arms one continued-session reminder.
func (s *Scheduler) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dismissed := s.pending
	s.pending = s.next
	s.next = nil
	if s.pending != nil && s.notify != nil && s.enabled {
		s.notify(*s.pending)
	}

	if dismissed == nil || dismissed.Reason != model.ReasonEstimatedTime {
		return
	}
	if s.closed || !s.inFocus || s.continuedArmed {
		return
	}
	s.continuedArmed = true
	run := s.run
	s.continued = s.clock.AfterFunc(s.cfg.ContinuedSession, func() {
		s.fire(run, model.ReasonContinuedSession)
	})
}

// Close cancels every armed timer. The scheduler ignores all later input.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelFocusTimersLocked()
}

func (s *Scheduler) armFocusRunLocked(change timer.Change) {
	s.run++
	run := s.run
	s.continuedArmed = false

	var since time.Duration
	if change.Next.PhaseStartedAt != nil {
		since = change.At.Sub(*change.Next.PhaseStartedAt)
		if since < 0 {
			since = 0
		}
	}

	estimated := time.Duration(change.Next.PlannedSeconds) * time.Second
	if estimated <= 0 {
		estimated = s.cfg.EstimatedFallback
	}

	// Thresholds already behind a restored run are treated as passed.
	if delay := estimated - since; delay > 0 {
		s.estimated = s.clock.AfterFunc(delay, func() {
			s.fire(run, model.ReasonEstimatedTime)
		})
	}
	if delay := s.cfg.LongSession - since; delay > 0 {
		s.longSession = s.clock.AfterFunc(delay, func() {
			s.fire(run, model.ReasonLongSession)
		})
	}
}

func (s *Scheduler) cancelFocusTimersLocked() {
	for _, t := range []*clock.Timer{&s.estimated, &s.longSession, &s.continued} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}

func (s *Scheduler) fire(run int, reason model.AlertReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || run != s.run || !s.inFocus {
		return
	}

	switch reason {
	case model.ReasonEstimatedTime:
		s.estimated = nil
		s.raiseLocked(model.AlertWarning, reason, estimatedTimeMessage)
	case model.ReasonLongSession:
		s.longSession = nil
		s.raiseLocked(model.AlertWarning, reason, longSessionMessage)
	case model.ReasonContinuedSession:
		s.continued = nil
		s.raiseLocked(model.AlertWarning, reason, continuedSessionMessage)
	}
}

func (s *Scheduler) celebrateLocked(count int) {
	if count <= 0 || count%s.cfg.MilestoneEvery != 0 || count == s.lastCelebrated {
		return
	}
	s.lastCelebrated = count
	s.raiseLocked(model.AlertSuccess, model.ReasonMilestone, fmt.Sprintf(milestoneMessageFormat, count))
}

func (s *Scheduler) raiseLocked(kind model.AlertKind, reason model.AlertReason, message string) {
	if !s.enabled {
		return
	}
	alert := model.Alert{
		Kind:     kind,
		Reason:   reason,
		Message:  message,
		RaisedAt: s.clock.Now(),
	}

	switch {
	case s.pending == nil:
		s.pending = &alert
	case priority(alert.Reason) > priority(s.pending.Reason):
		s.queueLocked(*s.pending)
		s.pending = &alert
	default:
		s.queueLocked(alert)
		return
	}

	if s.notify != nil {
		s.notify(alert)
	}
}

func (s *Scheduler) queueLocked(alert model.Alert) {
	if s.next == nil || priority(alert.Reason) > priority(s.next.Reason) {
		s.next = &alert
	}
}

// priority ranks alerts competing for the pending slot; higher wins.
func priority(reason model.AlertReason) int {
	switch reason {
	case model.ReasonMilestone:
		return 3
	case model.ReasonLongSession, model.ReasonContinuedSession:
		return 2
	case model.ReasonEstimatedTime:
		return 1
	default:
		return 0
	}
}
