package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivianur/hackathon-web/internal/db"
	"github.com/vivianur/hackathon-web/internal/model"
	"github.com/vivianur/hackathon-web/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	_, err = db.RunMigrations(context.Background(), database, migrationsDir, zerolog.Nop())
	require.NoError(t, err)
	return database
}

func createUser(t *testing.T, database *sql.DB, id, email string) {
	t.Helper()

	users := repository.NewUserRepository(database)
	ctx := context.Background()
	tx, err := users.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, users.CreateTx(ctx, tx, &model.User{
		ID:           id,
		Email:        email,
		PasswordHash: "hash",
		StudyRoutine: model.DefaultStudyRoutine(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
	require.NoError(t, tx.Commit())
}

func TestUserRepositoryLookup(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1", "a@example.com")

	users := repository.NewUserRepository(database)
	byEmail, err := users.GetByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	assert.Empty(t, byEmail.Neurodivergences)
	assert.Equal(t, 25, byEmail.StudyRoutine.SessionMinutes)

	_, err = users.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepositoryUpdateProfile(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1", "a@example.com")
	users := repository.NewUserRepository(database)
	ctx := context.Background()

	user, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	user.Name = "Ana"
	user.Neurodivergences = []string{"adhd", "dyslexia"}
	user.StudyRoutine.PreferredStudyTime = "night"
	user.StudyRoutine.SessionMinutes = 40
	user.UpdatedAt = user.UpdatedAt.Add(time.Hour)
	require.NoError(t, users.UpdateProfile(ctx, user))

	stored, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", stored.Name)
	assert.Equal(t, []string{"adhd", "dyslexia"}, stored.Neurodivergences)
	assert.Equal(t, "night", stored.StudyRoutine.PreferredStudyTime)
	assert.Equal(t, 40, stored.StudyRoutine.SessionMinutes)
	assert.Equal(t, "hash", stored.PasswordHash)
	assert.True(t, stored.UpdatedAt.After(stored.CreatedAt))

	user.ID = "missing"
	assert.ErrorIs(t, users.UpdateProfile(ctx, user), repository.ErrNotFound)
}

func TestSessionRepositoryStateRoundTrip(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1", "a@example.com")
	repo := repository.NewSessionRepository(database)
	ctx := context.Background()

	_, err := repo.GetState(ctx, "u1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	taskID := "t1"
	runID := "r1"
	state := model.IdleSessionState("u1", now)
	state.IsActive = true
	state.Phase = model.PhaseFocus
	state.TotalSeconds = 1500
	state.PlannedSeconds = 1500
	state.RemainingSeconds = 1500
	state.StartedAt = &now
	state.PhaseStartedAt = &now
	state.TaskID = &taskID
	state.RunID = &runID
	state.SessionCount = 3
	state.Version = 7

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.SaveStateTx(ctx, tx, &state))
	require.NoError(t, tx.Commit())

	loaded, err := repo.GetState(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, loaded.IsActive)
	assert.Equal(t, model.PhaseFocus, loaded.Phase)
	assert.Equal(t, 3, loaded.SessionCount)
	assert.Equal(t, 7, loaded.Version)
	require.NotNil(t, loaded.TaskID)
	assert.Equal(t, "t1", *loaded.TaskID)
	require.NotNil(t, loaded.StartedAt)
	assert.True(t, now.Equal(*loaded.StartedAt))

	state.IsActive = false
	state.Phase = model.PhaseIdle
	state.TaskID = nil
	state.StartedAt = nil
	state.Version = 8
	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.SaveStateTx(ctx, tx, &state))
	require.NoError(t, tx.Commit())

	loaded, err = repo.GetState(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, loaded.IsActive)
	assert.Nil(t, loaded.TaskID)
	assert.Nil(t, loaded.StartedAt)
	assert.Equal(t, 8, loaded.Version)
}

func TestSessionRepositoryHistory(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1", "a@example.com")
	repo := repository.NewSessionRepository(database)
	ctx := context.Background()

	base := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	for i, id := range []string{"s1", "s2", "s3"} {
		started := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.InsertSessionTx(ctx, tx, &model.PomodoroSession{
			ID:                     id,
			UserID:                 "u1",
			Phase:                  model.PhaseFocus,
			PlannedDurationSeconds: 1500,
			StartedAt:              started,
			Status:                 model.SessionStatusRunning,
			CreatedAt:              started,
			UpdatedAt:              started,
		}))
	}
	require.NoError(t, tx.Commit())

	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	session, err := repo.GetSessionTx(ctx, tx, "s1")
	require.NoError(t, err)
	ended := base.Add(25 * time.Minute)
	session.EndedAt = &ended
	session.ActualDurationSeconds = 1500
	session.Status = model.SessionStatusCompleted
	session.UpdatedAt = ended
	require.NoError(t, repo.UpdateSessionTx(ctx, tx, session))
	require.NoError(t, tx.Commit())

	sessions, err := repo.ListSessions(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s3", sessions[0].ID)
	assert.Equal(t, "s2", sessions[1].ID)

	all, err := repo.ListSessions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.SessionStatusCompleted, all[2].Status)
	assert.Equal(t, 1500, all[2].ActualDurationSeconds)
	require.NotNil(t, all[2].EndedAt)
}

func TestSessionRepositoryHistorySubSecondOrder(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1", "a@example.com")
	repo := repository.NewSessionRepository(database)
	ctx := context.Background()

	base := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	runs := []struct {
		id      string
		phase   model.Phase
		started time.Time
	}{
		{id: "focus", phase: model.PhaseFocus, started: base},
		{id: "break", phase: model.PhaseBreak, started: base.Add(120 * time.Millisecond)},
		{id: "focus-again", phase: model.PhaseFocus, started: base.Add(500 * time.Millisecond)},
	}

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	for _, run := range runs {
		require.NoError(t, repo.InsertSessionTx(ctx, tx, &model.PomodoroSession{
			ID:                     run.id,
			UserID:                 "u1",
			Phase:                  run.phase,
			PlannedDurationSeconds: 300,
			StartedAt:              run.started,
			Status:                 model.SessionStatusRunning,
			CreatedAt:              run.started,
			UpdatedAt:              run.started,
		}))
	}
	require.NoError(t, tx.Commit())

	sessions, err := repo.ListSessions(ctx, "u1", 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}
	assert.Equal(t, []string{"focus-again", "break", "focus"}, ids)
	assert.Equal(t, base.Add(120*time.Millisecond), sessions[1].StartedAt)
}

func TestTaskRepositoryCRUD(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1", "a@example.com")
	createUser(t, database, "u2", "b@example.com")
	repo := repository.NewTaskRepository(database)
	ctx := context.Background()

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	estimate := 50
	task := &model.Task{
		ID:               "t1",
		UserID:           "u1",
		Title:            "Write report",
		Status:           model.TaskStatusTodo,
		Priority:         model.TaskPriorityHigh,
		EstimatedMinutes: &estimate,
		Subtasks:         []model.Subtask{{ID: "st1", Title: "Outline"}},
		Tags:             []string{"work"},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, repo.Create(ctx, task))
	require.NoError(t, repo.Create(ctx, &model.Task{
		ID:        "t2",
		UserID:    "u1",
		Title:     "Read",
		Status:    model.TaskStatusDone,
		Priority:  model.TaskPriorityLow,
		CreatedAt: now.Add(time.Minute),
		UpdatedAt: now.Add(time.Minute),
	}))

	loaded, err := repo.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.NotNil(t, loaded.EstimatedMinutes)
	assert.Equal(t, 50, *loaded.EstimatedMinutes)
	assert.Equal(t, []model.Subtask{{ID: "st1", Title: "Outline"}}, loaded.Subtasks)
	assert.Equal(t, []string{"work"}, loaded.Tags)

	_, err = repo.Get(ctx, "u2", "t1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	all, err := repo.List(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t2", all[0].ID)
	assert.Empty(t, all[0].Tags)

	done, err := repo.List(ctx, "u1", model.TaskStatusDone)
	require.NoError(t, err)
	require.Len(t, done, 1)

	loaded.Status = model.TaskStatusInProgress
	loaded.Subtasks[0].Completed = true
	require.NoError(t, repo.Update(ctx, loaded))
	loaded, err = repo.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, loaded.Status)
	assert.True(t, loaded.Subtasks[0].Completed)

	require.NoError(t, repo.Delete(ctx, "u1", "t2"))
	assert.ErrorIs(t, repo.Delete(ctx, "u1", "t2"), repository.ErrNotFound)
}

func TestTaskRepositoryListSubSecondOrder(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1", "a@example.com")
	repo := repository.NewTaskRepository(database)
	ctx := context.Background()

	base := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{0, 120 * time.Millisecond, 123 * time.Millisecond} {
		created := base.Add(offset)
		require.NoError(t, repo.Create(ctx, &model.Task{
			ID:        fmt.Sprintf("t%d", i+1),
			UserID:    "u1",
			Title:     "Task",
			Status:    model.TaskStatusTodo,
			Priority:  model.TaskPriorityMedium,
			CreatedAt: created,
			UpdatedAt: created,
		}))
	}

	tasks, err := repo.List(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "t3", tasks[0].ID)
	assert.Equal(t, "t2", tasks[1].ID)
	assert.Equal(t, "t1", tasks[2].ID)
}

func TestTaskRepositoryAddTime(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1", "a@example.com")
	repo := repository.NewTaskRepository(database)
	ctx := context.Background()

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &model.Task{
		ID: "t1", UserID: "u1", Title: "Focus", Status: model.TaskStatusTodo,
		Priority: model.TaskPriorityMedium, CreatedAt: now, UpdatedAt: now,
	}))

	tx, err := database.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.AddTimeTx(ctx, tx, "u1", "t1", 25, now))
	require.NoError(t, repo.AddTimeTx(ctx, tx, "u1", "t1", 5, now))
	assert.ErrorIs(t, repo.AddTimeTx(ctx, tx, "u1", "gone", 5, now), repository.ErrNotFound)
	require.NoError(t, tx.Commit())

	loaded, err := repo.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 30, loaded.TimeSpentMinutes)
}

func TestSettingsRepositoryUpsert(t *testing.T) {
	database := openTestDB(t)
	createUser(t, database, "u1", "a@example.com")
	repo := repository.NewSettingsRepository(database)
	ctx := context.Background()

	_, err := repo.Get(ctx, "u1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	settings := model.DefaultAccessibilitySettings("u1", now)
	require.NoError(t, repo.Upsert(ctx, &settings))

	loaded, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, loaded.CognitiveAlerts)
	assert.Equal(t, "comfortable", loaded.Spacing)

	settings.CognitiveAlerts = false
	settings.FontSize = "large"
	require.NoError(t, repo.Upsert(ctx, &settings))

	loaded, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, loaded.CognitiveAlerts)
	assert.Equal(t, "large", loaded.FontSize)
}
