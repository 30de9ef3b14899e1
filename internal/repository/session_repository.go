package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vivianur/hackathon-web/internal/model"
)

// SessionRepository stores each user's timer state and the history of
// focus and break runs.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

const selectState = `SELECT user_id, is_active, is_paused, phase, remaining_seconds, total_seconds,
		planned_seconds, started_at, phase_started_at, task_id, run_id, session_count,
		version, updated_at
	 FROM session_states WHERE user_id = ?`

func (r *SessionRepository) GetState(ctx context.Context, userID string) (*model.SessionState, error) {
	return scanSessionState(r.db.QueryRowContext(ctx, selectState, userID))
}

func (r *SessionRepository) GetStateTx(ctx context.Context, tx *sql.Tx, userID string) (*model.SessionState, error) {
	return scanSessionState(tx.QueryRowContext(ctx, selectState, userID))
}

// SaveStateTx inserts or replaces the user's state row.
func (r *SessionRepository) SaveStateTx(ctx context.Context, tx *sql.Tx, state *model.SessionState) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO session_states (
			user_id, is_active, is_paused, phase, remaining_seconds, total_seconds,
			planned_seconds, started_at, phase_started_at, task_id, run_id, session_count,
			version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			is_active = excluded.is_active,
			is_paused = excluded.is_paused,
			phase = excluded.phase,
			remaining_seconds = excluded.remaining_seconds,
			total_seconds = excluded.total_seconds,
			planned_seconds = excluded.planned_seconds,
			started_at = excluded.started_at,
			phase_started_at = excluded.phase_started_at,
			task_id = excluded.task_id,
			run_id = excluded.run_id,
			session_count = excluded.session_count,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		state.UserID,
		state.IsActive,
		state.IsPaused,
		string(state.Phase),
		state.RemainingSeconds,
		state.TotalSeconds,
		state.PlannedSeconds,
		nullableTime(state.StartedAt),
		nullableTime(state.PhaseStartedAt),
		nullableString(state.TaskID),
		nullableString(state.RunID),
		state.SessionCount,
		state.Version,
		formatTime(state.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (r *SessionRepository) InsertSessionTx(ctx context.Context, tx *sql.Tx, session *model.PomodoroSession) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO pomodoro_sessions (
			id, user_id, phase, task_id, planned_duration_seconds, actual_duration_seconds,
			started_at, ended_at, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		string(session.Phase),
		nullableString(session.TaskID),
		session.PlannedDurationSeconds,
		session.ActualDurationSeconds,
		formatTime(session.StartedAt),
		nullableTime(session.EndedAt),
		session.Status,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const selectSession = `SELECT id, user_id, phase, task_id, planned_duration_seconds, actual_duration_seconds,
		started_at, ended_at, status, created_at, updated_at
	 FROM pomodoro_sessions`

func (r *SessionRepository) GetSessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (*model.PomodoroSession, error) {
	return scanPomodoroSession(tx.QueryRowContext(ctx, selectSession+` WHERE id = ?`, sessionID))
}

func (r *SessionRepository) UpdateSessionTx(ctx context.Context, tx *sql.Tx, session *model.PomodoroSession) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE pomodoro_sessions
		 SET actual_duration_seconds = ?,
		     ended_at = ?,
		     status = ?,
		     updated_at = ?
		 WHERE id = ?`,
		session.ActualDurationSeconds,
		nullableTime(session.EndedAt),
		session.Status,
		formatTime(session.UpdatedAt),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListSessions(ctx context.Context, userID string, limit int) ([]model.PomodoroSession, error) {
	rows, err := r.db.QueryContext(
		ctx,
		selectSession+`
		 WHERE user_id = ?
		 ORDER BY started_at DESC, rowid DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.PomodoroSession, 0, limit)
	for rows.Next() {
		session, scanErr := scanPomodoroSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func scanSessionState(s scanner) (*model.SessionState, error) {
	state := model.SessionState{}
	var phase string
	var startedAt, phaseStartedAt, taskID, runID sql.NullString
	var updatedAt string
	err := s.Scan(
		&state.UserID,
		&state.IsActive,
		&state.IsPaused,
		&phase,
		&state.RemainingSeconds,
		&state.TotalSeconds,
		&state.PlannedSeconds,
		&startedAt,
		&phaseStartedAt,
		&taskID,
		&runID,
		&state.SessionCount,
		&state.Version,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan state: %w", err)
	}
	state.Phase = model.Phase(phase)

	if state.StartedAt, err = parseNullTime(startedAt, "state started_at"); err != nil {
		return nil, err
	}
	if state.PhaseStartedAt, err = parseNullTime(phaseStartedAt, "state phase_started_at"); err != nil {
		return nil, err
	}
	state.TaskID = nullStringPtr(taskID)
	state.RunID = nullStringPtr(runID)

	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse state updated_at: %w", err)
	}
	state.UpdatedAt = parsedUpdatedAt
	return &state, nil
}

func scanPomodoroSession(s scanner) (*model.PomodoroSession, error) {
	session := model.PomodoroSession{}
	var phase string
	var taskID sql.NullString
	var startedAt string
	var endedAt sql.NullString
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&session.ID,
		&session.UserID,
		&phase,
		&taskID,
		&session.PlannedDurationSeconds,
		&session.ActualDurationSeconds,
		&startedAt,
		&endedAt,
		&session.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.Phase = model.Phase(phase)
	session.TaskID = nullStringPtr(taskID)

	if session.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse session started_at: %w", err)
	}
	if session.EndedAt, err = parseNullTime(endedAt, "session ended_at"); err != nil {
		return nil, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse session updated_at: %w", err)
	}

	return &session, nil
}
