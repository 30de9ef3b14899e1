package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vivianur/hackathon-web/internal/clock"
	apperrors "github.com/vivianur/hackathon-web/internal/errors"
	"github.com/vivianur/hackathon-web/internal/model"
	"github.com/vivianur/hackathon-web/internal/repository"
)

const (
	maxTitleLength      = 200
	maxEstimatedMinutes = 24 * 60
	maxTagsPerTask      = 20
)

type TaskService struct {
	repo  *repository.TaskRepository
	clock clock.Clock
}

// TaskInput carries the editable task fields. Nil fields are left as they
// are on update; on create they take their defaults.
type TaskInput struct {
	Title            *string
	Description      *string
	Status           *string
	Priority         *string
	EstimatedMinutes *int
	Tags             []string
	DueDate          *time.Time
}

// SubtaskInput carries a partial subtask update.
type SubtaskInput struct {
	Title     *string
	Completed *bool
}

func NewTaskService(repo *repository.TaskRepository, clk clock.Clock) *TaskService {
	return &TaskService{repo: repo, clock: clk}
}

func (s *TaskService) Create(ctx context.Context, userID string, input TaskInput) (*model.Task, *apperrors.APIError) {
	if input.Title == nil {
		return nil, apperrors.Validation("invalid task", map[string]string{"title": "title is required"})
	}

	now := s.clock.Now()
	task := model.Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    model.TaskStatusTodo,
		Priority:  model.TaskPriorityMedium,
		Subtasks:  []model.Subtask{},
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if apiErr := applyTaskInput(&task, input); apiErr != nil {
		return nil, apiErr
	}

	if err := s.repo.Create(ctx, &task); err != nil {
		return nil, apperrors.InternalCause("failed to create task", err)
	}
	return &task, nil
}

func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*model.Task, *apperrors.APIError) {
	task, err := s.repo.Get(ctx, userID, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("task_not_found", "task not found")
	}
	if err != nil {
		return nil, apperrors.InternalCause("failed to get task", err)
	}
	return task, nil
}

func (s *TaskService) List(ctx context.Context, userID, status string) ([]model.Task, *apperrors.APIError) {
	if status != "" && !model.IsValidTaskStatus(status) {
		return nil, apperrors.BadRequest("invalid_status", "status must be one of todo, in_progress, done")
	}
	tasks, err := s.repo.List(ctx, userID, status)
	if err != nil {
		return nil, apperrors.InternalCause("failed to list tasks", err)
	}
	return tasks, nil
}

func (s *TaskService) Update(ctx context.Context, userID, taskID string, input TaskInput) (*model.Task, *apperrors.APIError) {
	return s.mutate(ctx, userID, taskID, func(task *model.Task) *apperrors.APIError {
		return applyTaskInput(task, input)
	})
}

func (s *TaskService) UpdateStatus(ctx context.Context, userID, taskID, status string) (*model.Task, *apperrors.APIError) {
	return s.mutate(ctx, userID, taskID, func(task *model.Task) *apperrors.APIError {
		return applyTaskInput(task, TaskInput{Status: &status})
	})
}

func (s *TaskService) Delete(ctx context.Context, userID, taskID string) *apperrors.APIError {
	err := s.repo.Delete(ctx, userID, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("task_not_found", "task not found")
	}
	if err != nil {
		return apperrors.InternalCause("failed to delete task", err)
	}
	return nil
}

func (s *TaskService) AddSubtask(ctx context.Context, userID, taskID, title string) (*model.Task, *apperrors.APIError) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.Validation("invalid subtask", map[string]string{"title": "title is required"})
	}
	return s.mutate(ctx, userID, taskID, func(task *model.Task) *apperrors.APIError {
		task.Subtasks = append(task.Subtasks, model.Subtask{ID: uuid.NewString(), Title: title})
		return nil
	})
}

func (s *TaskService) UpdateSubtask(ctx context.Context, userID, taskID, subtaskID string, input SubtaskInput) (*model.Task, *apperrors.APIError) {
	return s.mutate(ctx, userID, taskID, func(task *model.Task) *apperrors.APIError {
		for i := range task.Subtasks {
			if task.Subtasks[i].ID != subtaskID {
				continue
			}
			if input.Title != nil {
				title := strings.TrimSpace(*input.Title)
				if title == "" {
					return apperrors.Validation("invalid subtask", map[string]string{"title": "title is required"})
				}
				task.Subtasks[i].Title = title
			}
			if input.Completed != nil {
				task.Subtasks[i].Completed = *input.Completed
			}
			return nil
		}
		return apperrors.NotFound("subtask_not_found", "subtask not found")
	})
}

func (s *TaskService) DeleteSubtask(ctx context.Context, userID, taskID, subtaskID string) (*model.Task, *apperrors.APIError) {
	return s.mutate(ctx, userID, taskID, func(task *model.Task) *apperrors.APIError {
		for i := range task.Subtasks {
			if task.Subtasks[i].ID == subtaskID {
				task.Subtasks = append(task.Subtasks[:i], task.Subtasks[i+1:]...)
				return nil
			}
		}
		return apperrors.NotFound("subtask_not_found", "subtask not found")
	})
}

// AddTime credits focus minutes to a task outside of a timer transaction.
func (s *TaskService) AddTime(ctx context.Context, userID, taskID string, minutes int) *apperrors.APIError {
	if minutes <= 0 {
		return apperrors.BadRequest("invalid_minutes", "minutes must be positive")
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return apperrors.InternalCause("failed to start transaction", err)
	}
	defer tx.Rollback()

	err = s.repo.AddTimeTx(ctx, tx, userID, taskID, minutes, s.clock.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("task_not_found", "task not found")
	}
	if err != nil {
		return apperrors.InternalCause("failed to add task time", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.InternalCause("failed to commit transaction", err)
	}
	return nil
}

func (s *TaskService) mutate(ctx context.Context, userID, taskID string, fn func(*model.Task) *apperrors.APIError) (*model.Task, *apperrors.APIError) {
	task, apiErr := s.Get(ctx, userID, taskID)
	if apiErr != nil {
		return nil, apiErr
	}
	if apiErr := fn(task); apiErr != nil {
		return nil, apiErr
	}

	task.UpdatedAt = s.clock.Now()
	err := s.repo.Update(ctx, task)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("task_not_found", "task not found")
	}
	if err != nil {
		return nil, apperrors.InternalCause("failed to update task", err)
	}
	return task, nil
}

func applyTaskInput(task *model.Task, input TaskInput) *apperrors.APIError {
	fields := map[string]string{}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		switch {
		case title == "":
			fields["title"] = "title is required"
		case len(title) > maxTitleLength:
			fields["title"] = "title is too long"
		default:
			task.Title = title
		}
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		if model.IsValidTaskStatus(*input.Status) {
			task.Status = *input.Status
		} else {
			fields["status"] = "status must be one of todo, in_progress, done"
		}
	}
	if input.Priority != nil {
		if model.IsValidTaskPriority(*input.Priority) {
			task.Priority = *input.Priority
		} else {
			fields["priority"] = "priority must be one of low, medium, high"
		}
	}
	if input.EstimatedMinutes != nil {
		minutes := *input.EstimatedMinutes
		if minutes < 0 || minutes > maxEstimatedMinutes {
			fields["estimatedMinutes"] = "estimatedMinutes must be between 0 and 1440"
		} else if minutes == 0 {
			task.EstimatedMinutes = nil
		} else {
			task.EstimatedMinutes = &minutes
		}
	}
	if input.Tags != nil {
		tags := normalizeTags(input.Tags)
		if len(tags) > maxTagsPerTask {
			fields["tags"] = "too many tags"
		} else {
			task.Tags = tags
		}
	}
	if input.DueDate != nil {
		due := input.DueDate.UTC()
		task.DueDate = &due
	}

	if len(fields) > 0 {
		return apperrors.Validation("invalid task", fields)
	}
	return nil
}

// normalizeTags trims, drops empties and removes duplicates, keeping order.
func normalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
