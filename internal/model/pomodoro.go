package model

import "time"

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseFocus     Phase = "focus"
	PhaseBreak     Phase = "break"
	PhaseLongBreak Phase = "long_break"
)

const (
	DefaultFocusDurationSeconds      = 25 * 60
	DefaultShortBreakDurationSeconds = 5 * 60
	DefaultLongBreakDurationSeconds  = 15 * 60
)

const (
	SessionStatusRunning   = "running"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
)

// SessionState is the persisted state of one user's focus/break countdown.
// RemainingSeconds is only authoritative while the timer is paused or idle;
// while running it is recomputed from StartedAt and TotalSeconds.
type SessionState struct {
	UserID           string     `json:"userId"`
	IsActive         bool       `json:"isActive"`
	IsPaused         bool       `json:"isPaused"`
	Phase            Phase      `json:"phase"`
	RemainingSeconds int        `json:"remainingSeconds"`
	TotalSeconds     int        `json:"totalSeconds"`
	PlannedSeconds   int        `json:"plannedSeconds"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	PhaseStartedAt   *time.Time `json:"phaseStartedAt,omitempty"`
	TaskID           *string    `json:"taskId,omitempty"`
	RunID            *string    `json:"runId,omitempty"`
	SessionCount     int        `json:"sessionCount"`
	Version          int        `json:"version"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// IdleSessionState returns the state a user starts with.
func IdleSessionState(userID string, now time.Time) SessionState {
	return SessionState{
		UserID:    userID,
		Phase:     PhaseIdle,
		Version:   1,
		UpdatedAt: now,
	}
}

// PomodoroSession is one finished or in-flight phase run kept as history.
type PomodoroSession struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"userId"`
	Phase                  Phase      `json:"phase"`
	TaskID                 *string    `json:"taskId,omitempty"`
	PlannedDurationSeconds int        `json:"plannedDurationSeconds"`
	ActualDurationSeconds  int        `json:"actualDurationSeconds"`
	StartedAt              time.Time  `json:"startedAt"`
	EndedAt                *time.Time `json:"endedAt,omitempty"`
	Status                 string     `json:"status"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}
