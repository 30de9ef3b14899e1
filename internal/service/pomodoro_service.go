package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/vivianur/hackathon-web/internal/alert"
	"github.com/vivianur/hackathon-web/internal/clock"
	apperrors "github.com/vivianur/hackathon-web/internal/errors"
	"github.com/vivianur/hackathon-web/internal/metrics"
	"github.com/vivianur/hackathon-web/internal/model"
	"github.com/vivianur/hackathon-web/internal/pubsub"
	"github.com/vivianur/hackathon-web/internal/repository"
	"github.com/vivianur/hackathon-web/internal/timer"
)

const (
	maxFocusDurationSeconds = 4 * 60 * 60
	maxHistoryLimit         = 200
)

type PomodoroOptions struct {
	Alerts        alert.Config
	EngineIdleTTL time.Duration
	TickInterval  time.Duration
	HistoryLimit  int
}

// PomodoroService runs one timer engine per user. Engines live in memory
// while the user is around and are rebuilt from the stored state otherwise.
type PomodoroService struct {
	sessions *repository.SessionRepository
	tasks    *repository.TaskRepository
	settings *repository.SettingsRepository
	clock    clock.Clock
	metrics  *metrics.Collector
	logger   zerolog.Logger
	opts     PomodoroOptions

	mu      sync.Mutex
	stopped bool
	engines *gocache.Cache
	broker  *pubsub.Broker[Notice]
}

// engine pairs a user's timer with its alert scheduler. mu serializes every
// call into the timer; the scheduler guards itself.
type engine struct {
	mu        sync.Mutex
	userID    string
	timer     *timer.Timer
	scheduler *alert.Scheduler
	changes   []timer.Change
	closed    atomic.Bool
}

func (e *engine) record(change timer.Change) {
	e.changes = append(e.changes, change)
}

func (e *engine) drain() []timer.Change {
	changes := e.changes
	e.changes = nil
	return changes
}

// StateView is the timer state as served to clients.
type StateView struct {
	UserID           string      `json:"userId"`
	IsActive         bool        `json:"isActive"`
	IsPaused         bool        `json:"isPaused"`
	Phase            model.Phase `json:"phase"`
	RemainingSeconds int         `json:"remainingSeconds"`
	PlannedSeconds   int         `json:"plannedSeconds"`
	SessionCount     int         `json:"sessionCount"`
	TaskID           *string     `json:"taskId,omitempty"`
	RunID            *string     `json:"runId,omitempty"`
	StartedAt        *time.Time  `json:"startedAt,omitempty"`
	PhaseStartedAt   *time.Time  `json:"phaseStartedAt,omitempty"`
	Version          int         `json:"version"`
	UpdatedAt        time.Time   `json:"updatedAt"`
	ServerTime       time.Time   `json:"serverTime"`
}

// Notice is what live subscribers receive: a state change or an alert
// update. A nil Alert on an alert event means the alert was cleared.
type Notice struct {
	UserID string       `json:"-"`
	State  *StateView   `json:"state,omitempty"`
	Alert  *model.Alert `json:"alert"`
}

type StartFocusInput struct {
	BaseVersion     int
	TaskID          string
	DurationSeconds int
}

func NewPomodoroService(
	sessions *repository.SessionRepository,
	tasks *repository.TaskRepository,
	settings *repository.SettingsRepository,
	clk clock.Clock,
	collector *metrics.Collector,
	logger zerolog.Logger,
	opts PomodoroOptions,
) *PomodoroService {
	if opts.EngineIdleTTL <= 0 {
		opts.EngineIdleTTL = 30 * time.Minute
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}

	s := &PomodoroService{
		sessions: sessions,
		tasks:    tasks,
		settings: settings,
		clock:    clk,
		metrics:  collector,
		logger:   logger.With().Str("component", "pomodoro").Logger(),
		opts:     opts,
		engines:  gocache.New(opts.EngineIdleTTL, opts.EngineIdleTTL/2),
		broker:   pubsub.NewBroker[Notice](),
	}
	s.engines.OnEvicted(func(userID string, item interface{}) {
		e := item.(*engine)
		if e.closed.Swap(true) {
			return
		}
		e.scheduler.Close()
		s.metrics.EngineEvicted()
		s.logger.Debug().Str("user_id", userID).Msg("engine evicted")
	})
	return s
}

func (s *PomodoroService) GetState(ctx context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.apply(ctx, userID, 0, nil)
}

func (s *PomodoroService) StartFocus(ctx context.Context, userID string, input StartFocusInput) (*StateView, *apperrors.APIError) {
	if input.DurationSeconds < 0 || input.DurationSeconds > maxFocusDurationSeconds {
		return nil, apperrors.BadRequest("invalid_duration", "durationSeconds must be between 0 and 14400")
	}
	if input.TaskID != "" {
		if _, err := s.tasks.Get(ctx, userID, input.TaskID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NotFound("task_not_found", "task not found")
			}
			return nil, apperrors.InternalCause("failed to get task", err)
		}
	}

	return s.apply(ctx, userID, input.BaseVersion, func(e *engine) {
		e.timer.StartFocus(input.TaskID, input.DurationSeconds)
	})
}

func (s *PomodoroService) StartBreak(ctx context.Context, userID string, baseVersion int, isLong bool) (*StateView, *apperrors.APIError) {
	return s.apply(ctx, userID, baseVersion, func(e *engine) {
		e.timer.StartBreak(isLong)
	})
}

func (s *PomodoroService) Pause(ctx context.Context, userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.apply(ctx, userID, baseVersion, func(e *engine) {
		e.timer.Pause()
	})
}

func (s *PomodoroService) Resume(ctx context.Context, userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.apply(ctx, userID, baseVersion, func(e *engine) {
		e.timer.Resume()
	})
}

func (s *PomodoroService) Stop(ctx context.Context, userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.apply(ctx, userID, baseVersion, func(e *engine) {
		e.timer.Stop()
	})
}

func (s *PomodoroService) GetHistory(ctx context.Context, userID string, limit int) ([]model.PomodoroSession, *apperrors.APIError) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = s.opts.HistoryLimit
	}
	sessions, err := s.sessions.ListSessions(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.InternalCause("failed to get history", err)
	}
	return sessions, nil
}

// GetAlert returns the pending alert, or nil when there is none.
func (s *PomodoroService) GetAlert(ctx context.Context, userID string) (*model.Alert, *apperrors.APIError) {
	e, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	return e.scheduler.Pending(), nil
}

// DismissAlert clears the pending alert and returns whichever alert took
// its place.
func (s *PomodoroService) DismissAlert(ctx context.Context, userID string) (*model.Alert, *apperrors.APIError) {
	e, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	e.scheduler.Dismiss()
	next := e.scheduler.Pending()
	if next == nil {
		s.broker.Publish(pubsub.AlertEvent, Notice{UserID: userID})
	}
	return next, nil
}

// SetAlertsEnabled forwards the cognitive-alerts preference to the user's
// live engine. Engines loaded later read it from the settings store. It
// waits for any engine load in progress, which may have read the old value.
func (s *PomodoroService) SetAlertsEnabled(userID string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.engines.Get(userID)
	if !ok {
		return
	}
	e := item.(*engine)
	hadAlert := e.scheduler.Pending() != nil
	e.scheduler.SetEnabled(enabled)
	if !enabled && hadAlert {
		s.broker.Publish(pubsub.AlertEvent, Notice{UserID: userID})
	}
}

// Subscribe streams the user's state and alert notices until ctx ends.
func (s *PomodoroService) Subscribe(ctx context.Context, userID string) <-chan pubsub.Event[Notice] {
	src := s.broker.Subscribe(ctx)
	out := make(chan pubsub.Event[Notice], 8)
	go func() {
		defer close(out)
		for event := range src {
			if event.Payload.UserID != userID {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Run ticks every live engine until ctx is cancelled, so phases that run
// out complete even when no client is polling.
func (s *PomodoroService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.TickAll(ctx)
		}
	}
}

// TickAll advances every live engine once. Engines with an active phase are
// kept alive; idle ones are left to expire.
func (s *PomodoroService) TickAll(ctx context.Context) {
	for userID, item := range s.engines.Items() {
		e := item.Object.(*engine)
		if e.closed.Load() {
			continue
		}

		e.mu.Lock()
		e.timer.Tick()
		view, err := s.persistLocked(ctx, e)
		active := e.timer.State().IsActive
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to persist tick")
			s.invalidate(userID, e)
		}
		e.mu.Unlock()

		if err != nil {
			continue
		}
		if view != nil {
			s.broker.Publish(pubsub.StateEvent, Notice{UserID: userID, State: view})
		}
		if active {
			s.keepAlive(userID, e)
		}
	}
}

// CloseStreams ends every subscription. Engines keep running.
func (s *PomodoroService) CloseStreams() {
	s.broker.Close()
}

// Close tears down every engine and ends all subscriptions. Later calls
// that need an engine fail with 503.
func (s *PomodoroService) Close() {
	s.mu.Lock()
	s.stopped = true
	s.engines.DeleteExpired()
	for userID := range s.engines.Items() {
		s.engines.Delete(userID)
	}
	s.mu.Unlock()
	s.broker.Close()
}

// apply runs op against the user's engine: tick, version check, op,
// persist. Changes produced by the tick are persisted even when the
// version check fails.
func (s *PomodoroService) apply(ctx context.Context, userID string, baseVersion int, op func(*engine)) (*StateView, *apperrors.APIError) {
	e, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.timer.Tick()

	var conflict *apperrors.APIError
	if baseVersion > 0 && baseVersion != e.timer.State().Version {
		s.metrics.StateConflict()
		view := s.viewLocked(e)
		conflict = apperrors.Conflict("state_conflict", "state changed on another device", map[string]interface{}{
			"state": view,
		})
	} else if op != nil {
		op(e)
	}

	published, err := s.persistLocked(ctx, e)
	if err != nil {
		s.invalidate(userID, e)
		return nil, apperrors.InternalCause("failed to save timer state", err)
	}
	if published != nil {
		s.broker.Publish(pubsub.StateEvent, Notice{UserID: userID, State: published})
	}
	if conflict != nil {
		return nil, conflict
	}

	view := s.viewLocked(e)
	return &view, nil
}

func (s *PomodoroService) acquire(ctx context.Context, userID string) (*engine, *apperrors.APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, apperrors.New(http.StatusServiceUnavailable, "unavailable", "timer service is shutting down")
	}
	if item, ok := s.engines.Get(userID); ok {
		e := item.(*engine)
		if !e.closed.Load() {
			s.engines.Set(userID, e, gocache.DefaultExpiration)
			return e, nil
		}
	}
	// Get hides an expired entry the janitor has not purged yet, and Set
	// would replace it without running the eviction hook.
	s.engines.Delete(userID)

	e, err := s.load(ctx, userID)
	if err != nil {
		return nil, apperrors.InternalCause("failed to load timer state", err)
	}
	s.engines.Set(userID, e, gocache.DefaultExpiration)
	s.metrics.EngineLoaded()
	return e, nil
}

func (s *PomodoroService) load(ctx context.Context, userID string) (*engine, error) {
	state, err := s.sessions.GetState(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		idle := model.IdleSessionState(userID, s.clock.Now())
		state = &idle
	} else if err != nil {
		return nil, err
	}

	enabled := true
	settings, err := s.settings.Get(ctx, userID)
	if err == nil {
		enabled = settings.CognitiveAlerts
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	e := &engine{userID: userID}
	e.scheduler = alert.NewScheduler(s.clock, s.opts.Alerts, enabled, func(raised model.Alert) {
		s.metrics.AlertRaised(string(raised.Reason))
		s.broker.Publish(pubsub.AlertEvent, Notice{UserID: userID, Alert: &raised})
	})
	e.timer = timer.New(s.clock, userID)
	e.timer.Subscribe(e.scheduler.Observe)
	e.timer.Subscribe(e.record)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.timer.Restore(*state)
	if _, err := s.persistLocked(ctx, e); err != nil {
		e.scheduler.Close()
		return nil, err
	}

	s.logger.Debug().Str("user_id", userID).Int("version", state.Version).Msg("engine loaded")
	return e, nil
}

func (s *PomodoroService) keepAlive(userID string, e *engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.engines.Get(userID); ok && item == e {
		s.engines.Set(userID, e, gocache.DefaultExpiration)
	}
}

// invalidate drops an engine whose memory no longer matches the store.
func (s *PomodoroService) invalidate(userID string, e *engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.engines.Get(userID); ok && item == e {
		s.engines.Delete(userID)
	}
}

// persistLocked writes the engine's pending changes in one transaction and
// returns the new state view when anything was written.
func (s *PomodoroService) persistLocked(ctx context.Context, e *engine) (*StateView, error) {
	changes := e.drain()
	if !needsWrite(changes) {
		return nil, nil
	}

	tx, err := s.sessions.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, change := range changes {
		if change.Ended != nil {
			if err := s.finishRunTx(ctx, tx, e.userID, change); err != nil {
				return nil, err
			}
		}
		if change.Op == timer.OpStartFocus || change.Op == timer.OpStartBreak {
			if err := s.startRunTx(ctx, tx, e.userID, change); err != nil {
				return nil, err
			}
		}
	}

	state := e.timer.State()
	if err := s.sessions.SaveStateTx(ctx, tx, &state); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit timer state: %w", err)
	}

	for _, change := range changes {
		if change.Ended != nil {
			s.metrics.PhaseEnded(string(change.Ended.Phase), change.Ended.Natural)
		}
	}
	view := s.viewLocked(e)
	return &view, nil
}

func needsWrite(changes []timer.Change) bool {
	for _, change := range changes {
		if change.Op != timer.OpRestore {
			return true
		}
	}
	return false
}

func (s *PomodoroService) startRunTx(ctx context.Context, tx *sql.Tx, userID string, change timer.Change) error {
	session := model.PomodoroSession{
		ID:                     change.RunID,
		UserID:                 userID,
		Phase:                  change.Next.Phase,
		PlannedDurationSeconds: change.Next.PlannedSeconds,
		StartedAt:              change.At,
		Status:                 model.SessionStatusRunning,
		CreatedAt:              change.At,
		UpdatedAt:              change.At,
	}
	if change.Next.TaskID != "" {
		taskID := change.Next.TaskID
		session.TaskID = &taskID
	}
	return s.sessions.InsertSessionTx(ctx, tx, &session)
}

func (s *PomodoroService) finishRunTx(ctx context.Context, tx *sql.Tx, userID string, change timer.Change) error {
	ended := change.Ended
	if ended.RunID != "" {
		session, err := s.sessions.GetSessionTx(ctx, tx, ended.RunID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return err
		case session.Status == model.SessionStatusRunning:
			session.Status = model.SessionStatusCancelled
			if ended.Completed {
				session.Status = model.SessionStatusCompleted
			}
			session.ActualDurationSeconds = ended.ActiveSeconds
			session.EndedAt = &change.At
			session.UpdatedAt = change.At
			if err := s.sessions.UpdateSessionTx(ctx, tx, session); err != nil {
				return err
			}
		}
	}

	if ended.Phase != model.PhaseFocus || !ended.Completed || ended.TaskID == "" {
		return nil
	}
	minutes := creditedMinutes(ended.ActiveSeconds)
	if minutes == 0 {
		return nil
	}
	err := s.tasks.AddTimeTx(ctx, tx, userID, ended.TaskID, minutes, change.At)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn().Str("user_id", userID).Str("task_id", ended.TaskID).Msg("focus credited to missing task")
		return nil
	}
	return err
}

// creditedMinutes rounds active focus time to the nearest minute.
func creditedMinutes(activeSeconds int) int {
	return (activeSeconds + 30) / 60
}

func (s *PomodoroService) viewLocked(e *engine) StateView {
	state := e.timer.State()
	return StateView{
		UserID:           state.UserID,
		IsActive:         state.IsActive,
		IsPaused:         state.IsPaused,
		Phase:            state.Phase,
		RemainingSeconds: state.RemainingSeconds,
		PlannedSeconds:   state.PlannedSeconds,
		SessionCount:     state.SessionCount,
		TaskID:           state.TaskID,
		RunID:            state.RunID,
		StartedAt:        state.StartedAt,
		PhaseStartedAt:   state.PhaseStartedAt,
		Version:          state.Version,
		UpdatedAt:        state.UpdatedAt,
		ServerTime:       s.clock.Now(),
	}
}
