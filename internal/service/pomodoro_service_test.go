package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivianur/hackathon-web/internal/alert"
	"github.com/vivianur/hackathon-web/internal/metrics"
	"github.com/vivianur/hackathon-web/internal/model"
	"github.com/vivianur/hackathon-web/internal/pubsub"
	"github.com/vivianur/hackathon-web/internal/repository"
)

func TestStartFocusPersistsStateAndHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("focus@example.com")

	state, apiErr := h.pomodoro.StartFocus(ctx, userID, StartFocusInput{BaseVersion: 1})
	require.Nil(t, apiErr)
	assert.True(t, state.IsActive)
	assert.Equal(t, model.PhaseFocus, state.Phase)
	assert.Equal(t, 1500, state.RemainingSeconds)
	assert.Equal(t, 2, state.Version)
	require.NotNil(t, state.RunID)

	history, apiErr := h.pomodoro.GetHistory(ctx, userID, 10)
	require.Nil(t, apiErr)
	require.Len(t, history, 1)
	assert.Equal(t, *state.RunID, history[0].ID)
	assert.Equal(t, model.SessionStatusRunning, history[0].Status)

	fresh := h.newPomodoro()
	reloaded, apiErr := fresh.GetState(ctx, userID)
	require.Nil(t, apiErr)
	assert.Equal(t, 2, reloaded.Version)
	assert.True(t, reloaded.IsActive)
}

func TestPausedTimeIsExcluded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("pause@example.com")

	state, apiErr := h.pomodoro.StartFocus(ctx, userID, StartFocusInput{BaseVersion: 1})
	require.Nil(t, apiErr)

	h.clock.Advance(5 * time.Minute)
	state, apiErr = h.pomodoro.Pause(ctx, userID, state.Version)
	require.Nil(t, apiErr)
	assert.True(t, state.IsPaused)
	assert.Equal(t, 1200, state.RemainingSeconds)

	h.clock.Advance(10 * time.Minute)
	state, apiErr = h.pomodoro.Resume(ctx, userID, state.Version)
	require.Nil(t, apiErr)
	assert.Equal(t, 1200, state.RemainingSeconds)

	h.clock.Advance(time.Minute)
	state, apiErr = h.pomodoro.GetState(ctx, userID)
	require.Nil(t, apiErr)
	assert.Equal(t, 1140, state.RemainingSeconds)
}

func TestStaleBaseVersionConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("conflict@example.com")

	_, apiErr := h.pomodoro.StartFocus(ctx, userID, StartFocusInput{BaseVersion: 1})
	require.Nil(t, apiErr)

	_, apiErr = h.pomodoro.Pause(ctx, userID, 1)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "state_conflict", apiErr.Code)

	details, ok := apiErr.Details.(map[string]interface{})
	require.True(t, ok)
	current, ok := details["state"].(StateView)
	require.True(t, ok)
	assert.Equal(t, 2, current.Version)
	assert.False(t, current.IsPaused)
}

func TestFocusCompletionCreditsTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("credit@example.com")

	task, apiErr := h.tasks.Create(ctx, userID, TaskInput{Title: strPtr("Study")})
	require.Nil(t, apiErr)

	_, apiErr = h.pomodoro.StartFocus(ctx, userID, StartFocusInput{TaskID: task.ID})
	require.Nil(t, apiErr)

	h.clock.Advance(25 * time.Minute)
	h.pomodoro.TickAll(ctx)

	state, apiErr := h.pomodoro.GetState(ctx, userID)
	require.Nil(t, apiErr)
	assert.False(t, state.IsActive)
	assert.Equal(t, model.PhaseIdle, state.Phase)
	assert.Equal(t, 1, state.SessionCount)

	task, apiErr = h.tasks.Get(ctx, userID, task.ID)
	require.Nil(t, apiErr)
	assert.Equal(t, 25, task.TimeSpentMinutes)

	history, apiErr := h.pomodoro.GetHistory(ctx, userID, 0)
	require.Nil(t, apiErr)
	require.Len(t, history, 1)
	assert.Equal(t, model.SessionStatusCompleted, history[0].Status)
	assert.Equal(t, 1500, history[0].ActualDurationSeconds)
	require.NotNil(t, history[0].TaskID)
	assert.Equal(t, task.ID, *history[0].TaskID)
}

func TestEarlyBreakCreditsRoundedMinutes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("early@example.com")

	task, apiErr := h.tasks.Create(ctx, userID, TaskInput{Title: strPtr("Essay")})
	require.Nil(t, apiErr)
	_, apiErr = h.pomodoro.StartFocus(ctx, userID, StartFocusInput{TaskID: task.ID})
	require.Nil(t, apiErr)

	h.clock.Advance(10*time.Minute + 40*time.Second)
	state, apiErr := h.pomodoro.StartBreak(ctx, userID, 0, false)
	require.Nil(t, apiErr)
	assert.Equal(t, model.PhaseBreak, state.Phase)
	assert.Equal(t, 1, state.SessionCount)

	task, apiErr = h.tasks.Get(ctx, userID, task.ID)
	require.Nil(t, apiErr)
	assert.Equal(t, 11, task.TimeSpentMinutes)
}

func TestStopDoesNotCreditTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("stop@example.com")

	task, apiErr := h.tasks.Create(ctx, userID, TaskInput{Title: strPtr("Read")})
	require.Nil(t, apiErr)
	_, apiErr = h.pomodoro.StartFocus(ctx, userID, StartFocusInput{TaskID: task.ID})
	require.Nil(t, apiErr)

	h.clock.Advance(20 * time.Minute)
	state, apiErr := h.pomodoro.Stop(ctx, userID, 0)
	require.Nil(t, apiErr)
	assert.Equal(t, 0, state.SessionCount)

	task, apiErr = h.tasks.Get(ctx, userID, task.ID)
	require.Nil(t, apiErr)
	assert.Zero(t, task.TimeSpentMinutes)

	history, apiErr := h.pomodoro.GetHistory(ctx, userID, 0)
	require.Nil(t, apiErr)
	require.Len(t, history, 1)
	assert.Equal(t, model.SessionStatusCancelled, history[0].Status)
	assert.Equal(t, 1200, history[0].ActualDurationSeconds)
}

func TestCompletionWithDeletedTaskStillSucceeds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("deleted@example.com")

	task, apiErr := h.tasks.Create(ctx, userID, TaskInput{Title: strPtr("Gone soon")})
	require.Nil(t, apiErr)
	_, apiErr = h.pomodoro.StartFocus(ctx, userID, StartFocusInput{TaskID: task.ID})
	require.Nil(t, apiErr)
	require.Nil(t, h.tasks.Delete(ctx, userID, task.ID))

	h.clock.Advance(26 * time.Minute)
	state, apiErr := h.pomodoro.GetState(ctx, userID)
	require.Nil(t, apiErr)
	assert.Equal(t, 1, state.SessionCount)
}

func TestStartFocusRejectsForeignTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.register("owner@example.com")
	other := h.register("other@example.com")

	task, apiErr := h.tasks.Create(ctx, owner, TaskInput{Title: strPtr("Private")})
	require.Nil(t, apiErr)

	_, apiErr = h.pomodoro.StartFocus(ctx, other, StartFocusInput{TaskID: task.ID})
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "task_not_found", apiErr.Code)

	_, apiErr = h.pomodoro.StartFocus(ctx, other, StartFocusInput{DurationSeconds: -5})
	require.NotNil(t, apiErr)
	assert.Equal(t, "invalid_duration", apiErr.Code)
}

func TestRestoreRecomputesRemainingTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("restore@example.com")

	_, apiErr := h.pomodoro.StartFocus(ctx, userID, StartFocusInput{})
	require.Nil(t, apiErr)
	h.pomodoro.Close()

	h.clock.Advance(10 * time.Minute)
	restarted := h.newPomodoro()
	state, apiErr := restarted.GetState(ctx, userID)
	require.Nil(t, apiErr)
	assert.True(t, state.IsActive)
	assert.Equal(t, 900, state.RemainingSeconds)
}

func TestRestoreCompletesExpiredRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("expired@example.com")

	task, apiErr := h.tasks.Create(ctx, userID, TaskInput{Title: strPtr("Offline")})
	require.Nil(t, apiErr)
	_, apiErr = h.pomodoro.StartFocus(ctx, userID, StartFocusInput{TaskID: task.ID})
	require.Nil(t, apiErr)
	h.pomodoro.Close()

	h.clock.Advance(2 * time.Hour)
	restarted := h.newPomodoro()
	state, apiErr := restarted.GetState(ctx, userID)
	require.Nil(t, apiErr)
	assert.False(t, state.IsActive)
	assert.Equal(t, 1, state.SessionCount)

	task, apiErr = h.tasks.Get(ctx, userID, task.ID)
	require.Nil(t, apiErr)
	assert.Equal(t, 25, task.TimeSpentMinutes)

	alert, apiErr := restarted.GetAlert(ctx, userID)
	require.Nil(t, apiErr)
	assert.Nil(t, alert)
}

func TestLongSessionAlertAndSettingsToggle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("alerts@example.com")

	_, apiErr := h.pomodoro.StartFocus(ctx, userID, StartFocusInput{DurationSeconds: 45 * 60})
	require.Nil(t, apiErr)

	h.clock.Advance(30 * time.Minute)
	pending, apiErr := h.pomodoro.GetAlert(ctx, userID)
	require.Nil(t, apiErr)
	require.NotNil(t, pending)
	assert.Equal(t, model.ReasonLongSession, pending.Reason)

	_, apiErr = h.settings.Update(ctx, userID, SettingsInput{CognitiveAlerts: boolPtr(false)})
	require.Nil(t, apiErr)
	pending, apiErr = h.pomodoro.GetAlert(ctx, userID)
	require.Nil(t, apiErr)
	assert.Nil(t, pending)

	_, apiErr = h.settings.Update(ctx, userID, SettingsInput{CognitiveAlerts: boolPtr(true)})
	require.Nil(t, apiErr)
	pending, apiErr = h.pomodoro.GetAlert(ctx, userID)
	require.Nil(t, apiErr)
	assert.Nil(t, pending)
}

func TestDisabledPreferenceAppliesToNewEngines(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("quiet@example.com")

	_, apiErr := h.settings.Update(ctx, userID, SettingsInput{CognitiveAlerts: boolPtr(false)})
	require.Nil(t, apiErr)

	_, apiErr = h.pomodoro.StartFocus(ctx, userID, StartFocusInput{})
	require.Nil(t, apiErr)
	h.clock.Advance(31 * time.Minute)

	pending, apiErr := h.pomodoro.GetAlert(ctx, userID)
	require.Nil(t, apiErr)
	assert.Nil(t, pending)
}

func TestMilestoneAfterFourFocusSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("milestone@example.com")

	for i := 0; i < 4; i++ {
		_, apiErr := h.pomodoro.StartFocus(ctx, userID, StartFocusInput{})
		require.Nil(t, apiErr)
		h.clock.Advance(time.Minute)
		_, apiErr = h.pomodoro.StartBreak(ctx, userID, 0, i == 3)
		require.Nil(t, apiErr)
	}

	pending, apiErr := h.pomodoro.GetAlert(ctx, userID)
	require.Nil(t, apiErr)
	require.NotNil(t, pending)
	assert.Equal(t, model.AlertSuccess, pending.Kind)
	assert.Equal(t, model.ReasonMilestone, pending.Reason)

	next, apiErr := h.pomodoro.DismissAlert(ctx, userID)
	require.Nil(t, apiErr)
	assert.Nil(t, next)
}

func TestSubscribeReceivesOwnEventsOnly(t *testing.T) {
	h := newHarness(t)
	userID := h.register("stream@example.com")
	otherID := h.register("neighbour@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := h.pomodoro.Subscribe(ctx, userID)

	_, apiErr := h.pomodoro.StartFocus(context.Background(), otherID, StartFocusInput{})
	require.Nil(t, apiErr)
	_, apiErr = h.pomodoro.StartFocus(context.Background(), userID, StartFocusInput{DurationSeconds: 600})
	require.Nil(t, apiErr)

	select {
	case event := <-events:
		assert.Equal(t, pubsub.StateEvent, event.Type)
		require.NotNil(t, event.Payload.State)
		assert.Equal(t, userID, event.Payload.State.UserID)
		assert.Equal(t, 600, event.Payload.State.PlannedSeconds)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for state event")
	}
}

func TestAlertPreferenceWaitsForEngineLoad(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("racing@example.com")

	// An engine load that read the preference before it was switched off.
	h.pomodoro.mu.Lock()
	e, err := h.pomodoro.load(ctx, userID)
	require.NoError(t, err)

	applied := make(chan struct{})
	go func() {
		h.pomodoro.SetAlertsEnabled(userID, false)
		close(applied)
	}()
	select {
	case <-applied:
		h.pomodoro.mu.Unlock()
		require.FailNow(t, "preference applied while the engine was still loading")
	case <-time.After(20 * time.Millisecond):
	}

	h.pomodoro.engines.Set(userID, e, gocache.DefaultExpiration)
	h.metrics.EngineLoaded()
	h.pomodoro.mu.Unlock()
	<-applied

	_, apiErr := h.pomodoro.StartFocus(ctx, userID, StartFocusInput{DurationSeconds: 45 * 60})
	require.Nil(t, apiErr)
	h.clock.Advance(time.Hour)

	pending, apiErr := h.pomodoro.GetAlert(ctx, userID)
	require.Nil(t, apiErr)
	assert.Nil(t, pending)
}

func TestExpiredEngineIsEvictedBeforeReload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("expired@example.com")

	collector := metrics.NewCollector(zerolog.Nop())
	svc := NewPomodoroService(
		repository.NewSessionRepository(h.db),
		repository.NewTaskRepository(h.db),
		repository.NewSettingsRepository(h.db),
		h.clock,
		collector,
		zerolog.Nop(),
		PomodoroOptions{Alerts: alert.DefaultConfig(), EngineIdleTTL: 10 * time.Millisecond},
	)
	t.Cleanup(svc.Close)

	_, apiErr := svc.GetState(ctx, userID)
	require.Nil(t, apiErr)
	assert.Equal(t, 1.0, liveEngines(t, collector))

	time.Sleep(30 * time.Millisecond)

	_, apiErr = svc.GetState(ctx, userID)
	require.Nil(t, apiErr)
	assert.Equal(t, 1.0, liveEngines(t, collector))
}

func TestCloseRejectsLaterCalls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register("closing@example.com")

	events := h.pomodoro.Subscribe(ctx, userID)
	h.pomodoro.CloseStreams()
	_, open := <-events
	assert.False(t, open)

	_, apiErr := h.pomodoro.StartFocus(ctx, userID, StartFocusInput{})
	require.Nil(t, apiErr)
	before := liveEngines(t, h.metrics)

	h.pomodoro.Close()
	assert.Equal(t, before-1, liveEngines(t, h.metrics))

	_, apiErr = h.pomodoro.GetState(ctx, userID)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, before-1, liveEngines(t, h.metrics))
	assert.Zero(t, h.clock.Pending())
}

func liveEngines(t *testing.T, collector *metrics.Collector) float64 {
	t.Helper()
	families, err := collector.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "mindease_live_engines" {
			return family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	require.FailNow(t, "live engines gauge not registered")
	return 0
}

func TestCreditedMinutes(t *testing.T) {
	for active, want := range map[int]int{0: 0, 29: 0, 30: 1, 89: 1, 90: 2, 1500: 25} {
		assert.Equal(t, want, creditedMinutes(active), "active=%d", active)
	}
}
