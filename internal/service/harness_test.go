package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vivianur/hackathon-web/internal/alert"
	"github.com/vivianur/hackathon-web/internal/clock/clocktest"
	"github.com/vivianur/hackathon-web/internal/db"
	"github.com/vivianur/hackathon-web/internal/metrics"
	"github.com/vivianur/hackathon-web/internal/repository"
)

type harness struct {
	t        *testing.T
	clock    *clocktest.Fake
	db       *sql.DB
	metrics  *metrics.Collector
	auth     *AuthService
	tasks    *TaskService
	settings *SettingsService
	profiles *ProfileService
	pomodoro *PomodoroService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	_, err = db.RunMigrations(context.Background(), database, migrationsDir, zerolog.Nop())
	require.NoError(t, err)

	h := &harness{
		t:       t,
		clock:   clocktest.NewFake(t, time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)),
		db:      database,
		metrics: metrics.NewCollector(zerolog.Nop()),
	}
	h.pomodoro = h.newPomodoro()
	h.auth = NewAuthService(
		repository.NewUserRepository(database),
		repository.NewSessionRepository(database),
		repository.NewSettingsRepository(database),
		h.clock,
		"test-secret",
		time.Hour,
	)
	h.tasks = NewTaskService(repository.NewTaskRepository(database), h.clock)
	h.profiles = NewProfileService(repository.NewUserRepository(database), h.clock)
	h.settings = NewSettingsService(repository.NewSettingsRepository(database), h.pomodoro, h.clock)
	return h
}

// newPomodoro builds a service over the same database with no live
// engines, as after a process restart.
func (h *harness) newPomodoro() *PomodoroService {
	svc := NewPomodoroService(
		repository.NewSessionRepository(h.db),
		repository.NewTaskRepository(h.db),
		repository.NewSettingsRepository(h.db),
		h.clock,
		h.metrics,
		zerolog.Nop(),
		PomodoroOptions{Alerts: alert.DefaultConfig(), EngineIdleTTL: time.Hour},
	)
	h.t.Cleanup(svc.Close)
	return svc
}

func (h *harness) register(email string) string {
	h.t.Helper()
	result, apiErr := h.auth.Register(context.Background(), RegisterInput{Email: email, Password: "secret-password"})
	require.Nil(h.t, apiErr)
	return result.User.ID
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }
