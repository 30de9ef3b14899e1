package model

import "time"

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"

	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

type Task struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	Priority         string     `json:"priority"`
	EstimatedMinutes *int       `json:"estimatedMinutes,omitempty"`
	TimeSpentMinutes int        `json:"timeSpentMinutes"`
	Subtasks         []Subtask  `json:"subtasks"`
	Tags             []string   `json:"tags"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

func IsValidTaskStatus(status string) bool {
	return status == TaskStatusTodo || status == TaskStatusInProgress || status == TaskStatusDone
}

func IsValidTaskPriority(priority string) bool {
	return priority == TaskPriorityLow || priority == TaskPriorityMedium || priority == TaskPriorityHigh
}
