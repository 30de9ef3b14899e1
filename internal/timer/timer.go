// Package timer implements the focus/break countdown. Remaining time is
// always derived from the wall-clock time elapsed since the running
// sub-interval started, never from the number of ticks delivered, so skipped
// or delayed ticks (sleep, throttled clients) cannot skew the countdown.
//
// A Timer is not safe for concurrent use; its owner serializes calls.
package timer

import (
	"time"

	"github.com/google/uuid"

	"github.com/vivianur/hackathon-web/internal/clock"
	"github.com/vivianur/hackathon-web/internal/model"
)

// Op names the operation that produced a Change.
type Op string

const (
	OpStartFocus Op = "start_focus"
	OpStartBreak Op = "start_break"
	OpPause      Op = "pause"
	OpResume     Op = "resume"
	OpStop       Op = "stop"
	OpComplete   Op = "complete"
	OpRestore    Op = "restore"
)

// Snapshot is the read-only view of the timer handed to observers and clients.
type Snapshot struct {
	IsActive         bool        `json:"isActive"`
	IsPaused         bool        `json:"isPaused"`
	Phase            model.Phase `json:"phase"`
	RemainingSeconds int         `json:"remainingSeconds"`
	PlannedSeconds   int         `json:"plannedSeconds"`
	SessionCount     int         `json:"sessionCount"`
	TaskID           string      `json:"taskId,omitempty"`
	PhaseStartedAt   *time.Time  `json:"phaseStartedAt,omitempty"`
}

// InFocus reports whether a focus phase is running or paused.
func (s Snapshot) InFocus() bool {
	return s.IsActive && s.Phase == model.PhaseFocus
}

// PhaseEnd describes a phase that stopped during an operation.
type PhaseEnd struct {
	Phase          model.Phase
	TaskID         string
	RunID          string
	PlannedSeconds int
	ActiveSeconds  int
	// Completed is true for a natural run-out, and for a focus phase ended by
	// starting a break. Stops and overwrites are not completions.
	Completed bool
	Natural   bool
}

// Change is published to listeners after every applied transition.
type Change struct {
	Op    Op
	Prev  Snapshot
	Next  Snapshot
	Ended *PhaseEnd
	RunID string
	At    time.Time
}

type Listener func(Change)

type Timer struct {
	clock     clock.Clock
	newID     func() string
	state     model.SessionState
	listeners []Listener
}

type Option func(*Timer)

// WithIDGenerator overrides how phase run ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(t *Timer) {
		t.newID = fn
	}
}

// New returns an idle timer for userID.
func New(clk clock.Clock, userID string, opts ...Option) *Timer {
	t := &Timer{
		clock: clk,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.state = model.IdleSessionState(userID, clk.Now())
	return t
}

// Subscribe registers a listener. Listeners run synchronously, in
// registration order, and must not call back into the Timer.
func (t *Timer) Subscribe(l Listener) {
	t.listeners = append(t.listeners, l)
}

// Restore rehydrates persisted state. A stored RemainingSeconds is never
// trusted for a running phase; the countdown is recomputed against the
// current wall clock and a run that already reached zero completes here.
func (t *Timer) Restore(state model.SessionState) {
	now := t.clock.Now()
	normalize(&state)
	t.state = state
	t.publish(Change{Op: OpRestore, Prev: Snapshot{Phase: model.PhaseIdle}, Next: t.snapshotAt(now), At: now})
	t.Tick()
}

// State returns a copy of the persisted state with the live remaining time.
func (t *Timer) State() model.SessionState {
	state := t.state
	state.RemainingSeconds = t.remainingAt(t.clock.Now())
	return state
}

func (t *Timer) Snapshot() Snapshot {
	return t.snapshotAt(t.clock.Now())
}

// StartFocus begins a focus phase, replacing whatever was running.
// A non-positive duration means the default 25 minutes.
func (t *Timer) StartFocus(taskID string, durationSeconds int) bool {
	now := t.clock.Now()
	if durationSeconds <= 0 {
		durationSeconds = model.DefaultFocusDurationSeconds
	}

	prev := t.snapshotAt(now)
	ended := t.endPhase(now, false, false)

	t.begin(model.PhaseFocus, durationSeconds, now)
	if taskID != "" {
		t.state.TaskID = &taskID
	}
	t.touch(now)

	t.publish(Change{Op: OpStartFocus, Prev: prev, Next: t.snapshotAt(now), Ended: ended, RunID: *t.state.RunID, At: now})
	return true
}

// StartBreak begins a short or long break. A focus phase in progress is
// counted as completed, so ending focus early still earns credit.
func (t *Timer) StartBreak(isLong bool) bool {
	now := t.clock.Now()
	prev := t.snapshotAt(now)

	var ended *PhaseEnd
	if t.state.IsActive {
		credit := t.state.Phase == model.PhaseFocus
		ended = t.endPhase(now, credit, false)
		if credit {
			t.state.SessionCount++
		}
	}

	phase, duration := model.PhaseBreak, model.DefaultShortBreakDurationSeconds
	if isLong {
		phase, duration = model.PhaseLongBreak, model.DefaultLongBreakDurationSeconds
	}
	t.begin(phase, duration, now)
	t.touch(now)

	t.publish(Change{Op: OpStartBreak, Prev: prev, Next: t.snapshotAt(now), Ended: ended, RunID: *t.state.RunID, At: now})
	return true
}

// Pause freezes the countdown at its current value.
func (t *Timer) Pause() bool {
	if !t.state.IsActive || t.state.IsPaused {
		return false
	}
	if t.Tick() {
		return false
	}

	now := t.clock.Now()
	prev := t.snapshotAt(now)
	remaining := t.remainingAt(now)
	t.state.TotalSeconds = remaining
	t.state.RemainingSeconds = remaining
	t.state.StartedAt = nil
	t.state.IsPaused = true
	t.touch(now)

	t.publish(Change{Op: OpPause, Prev: prev, Next: t.snapshotAt(now), RunID: t.runID(), At: now})
	return true
}

// Resume restarts the countdown from the frozen value.
func (t *Timer) Resume() bool {
	if !t.state.IsPaused {
		return false
	}

	now := t.clock.Now()
	prev := t.snapshotAt(now)
	t.state.StartedAt = &now
	t.state.IsPaused = false
	t.touch(now)

	t.publish(Change{Op: OpResume, Prev: prev, Next: t.snapshotAt(now), RunID: t.runID(), At: now})
	return true
}

// Stop abandons the current phase without crediting it.
func (t *Timer) Stop() bool {
	if !t.state.IsActive {
		return false
	}

	now := t.clock.Now()
	prev := t.snapshotAt(now)
	ended := t.endPhase(now, false, false)
	t.reset()
	t.touch(now)

	t.publish(Change{Op: OpStop, Prev: prev, Next: t.snapshotAt(now), Ended: ended, At: now})
	return true
}

// Tick refreshes the remaining time of a running phase and completes it once
// it reaches zero. It reports whether the phase completed.
func (t *Timer) Tick() bool {
	if !t.state.IsActive || t.state.IsPaused {
		return false
	}

	now := t.clock.Now()
	remaining := t.remainingAt(now)
	t.state.RemainingSeconds = remaining
	if remaining > 0 {
		return false
	}

	prev := t.snapshotAt(now)
	ended := t.endPhase(now, true, true)
	if t.state.Phase == model.PhaseFocus {
		t.state.SessionCount++
	}
	t.reset()
	t.touch(now)

	t.publish(Change{Op: OpComplete, Prev: prev, Next: t.snapshotAt(now), Ended: ended, At: now})
	return true
}

func (t *Timer) begin(phase model.Phase, durationSeconds int, now time.Time) {
	runID := t.newID()
	t.state.IsActive = true
	t.state.IsPaused = false
	t.state.Phase = phase
	t.state.TotalSeconds = durationSeconds
	t.state.RemainingSeconds = durationSeconds
	t.state.PlannedSeconds = durationSeconds
	t.state.StartedAt = &now
	t.state.PhaseStartedAt = &now
	t.state.TaskID = nil
	t.state.RunID = &runID
}

func (t *Timer) reset() {
	t.state.IsActive = false
	t.state.IsPaused = false
	t.state.Phase = model.PhaseIdle
	t.state.RemainingSeconds = 0
	t.state.TotalSeconds = 0
	t.state.PlannedSeconds = 0
	t.state.StartedAt = nil
	t.state.PhaseStartedAt = nil
	t.state.TaskID = nil
	t.state.RunID = nil
}

func (t *Timer) touch(now time.Time) {
	t.state.Version++
	t.state.UpdatedAt = now
}

func (t *Timer) endPhase(now time.Time, completed, natural bool) *PhaseEnd {
	if !t.state.IsActive {
		return nil
	}

	remaining := t.remainingAt(now)
	active := t.state.PlannedSeconds - remaining
	if active < 0 {
		active = 0
	}
	if active > t.state.PlannedSeconds {
		active = t.state.PlannedSeconds
	}

	end := &PhaseEnd{
		Phase:          t.state.Phase,
		RunID:          t.runID(),
		PlannedSeconds: t.state.PlannedSeconds,
		ActiveSeconds:  active,
		Completed:      completed,
		Natural:        natural,
	}
	if t.state.TaskID != nil {
		end.TaskID = *t.state.TaskID
	}
	return end
}

func (t *Timer) remainingAt(now time.Time) int {
	if !t.state.IsActive || t.state.IsPaused || t.state.StartedAt == nil {
		if t.state.RemainingSeconds < 0 {
			return 0
		}
		return t.state.RemainingSeconds
	}

	elapsed := now.Sub(*t.state.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := t.state.TotalSeconds - int(elapsed/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (t *Timer) snapshotAt(now time.Time) Snapshot {
	snap := Snapshot{
		IsActive:         t.state.IsActive,
		IsPaused:         t.state.IsPaused,
		Phase:            t.state.Phase,
		RemainingSeconds: t.remainingAt(now),
		PlannedSeconds:   t.state.PlannedSeconds,
		SessionCount:     t.state.SessionCount,
		PhaseStartedAt:   t.state.PhaseStartedAt,
	}
	if t.state.TaskID != nil {
		snap.TaskID = *t.state.TaskID
	}
	return snap
}

func (t *Timer) runID() string {
	if t.state.RunID == nil {
		return ""
	}
	return *t.state.RunID
}

func (t *Timer) publish(change Change) {
	for _, l := range t.listeners {
		l(change)
	}
}

// normalize repairs persisted state that violates the phase/activity invariants.
func normalize(state *model.SessionState) {
	if state.SessionCount < 0 {
		state.SessionCount = 0
	}
	if state.Phase == "" {
		state.Phase = model.PhaseIdle
	}
	if !state.IsActive || state.Phase == model.PhaseIdle {
		state.IsActive = false
		state.IsPaused = false
		state.Phase = model.PhaseIdle
		state.RemainingSeconds = 0
		state.TotalSeconds = 0
		state.PlannedSeconds = 0
		state.StartedAt = nil
		state.PhaseStartedAt = nil
		state.TaskID = nil
		state.RunID = nil
		return
	}
	if state.IsPaused {
		state.StartedAt = nil
		return
	}
	if state.StartedAt == nil {
		// Running without an anchor: freeze what was stored.
		state.IsPaused = true
		state.TotalSeconds = state.RemainingSeconds
	}
}
