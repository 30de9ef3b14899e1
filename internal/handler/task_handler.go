package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vivianur/hackathon-web/internal/middleware"
	"github.com/vivianur/hackathon-web/internal/service"
)

type TaskHandler struct {
	taskService *service.TaskService
}

type taskRequest struct {
	Title            *string    `json:"title"`
	Description      *string    `json:"description"`
	Status           *string    `json:"status"`
	Priority         *string    `json:"priority"`
	EstimatedMinutes *int       `json:"estimatedMinutes"`
	Tags             []string   `json:"tags"`
	DueDate          *time.Time `json:"dueDate"`
}

func (r taskRequest) input() service.TaskInput {
	return service.TaskInput{
		Title:            r.Title,
		Description:      r.Description,
		Status:           r.Status,
		Priority:         r.Priority,
		EstimatedMinutes: r.EstimatedMinutes,
		Tags:             r.Tags,
		DueDate:          r.DueDate,
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

type subtaskRequest struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}

func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) List(c *gin.Context) {
	tasks, apiErr := h.taskService.List(c.Request.Context(), middleware.UserID(c), c.Query("status"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req taskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, apiErr := h.taskService.Create(c.Request.Context(), middleware.UserID(c), req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

func (h *TaskHandler) Get(c *gin.Context) {
	task, apiErr := h.taskService.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *TaskHandler) Update(c *gin.Context) {
	var req taskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, apiErr := h.taskService.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}

	task, apiErr := h.taskService.UpdateStatus(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Status)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *TaskHandler) Delete(c *gin.Context) {
	if apiErr := h.taskService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) AddSubtask(c *gin.Context) {
	var req subtaskRequest
	if !bindJSON(c, &req) {
		return
	}
	title := ""
	if req.Title != nil {
		title = *req.Title
	}

	task, apiErr := h.taskService.AddSubtask(c.Request.Context(), middleware.UserID(c), c.Param("id"), title)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

func (h *TaskHandler) UpdateSubtask(c *gin.Context) {
	var req subtaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, apiErr := h.taskService.UpdateSubtask(
		c.Request.Context(),
		middleware.UserID(c),
		c.Param("id"),
		c.Param("subtaskId"),
		service.SubtaskInput{Title: req.Title, Completed: req.Completed},
	)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *TaskHandler) DeleteSubtask(c *gin.Context) {
	task, apiErr := h.taskService.DeleteSubtask(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Param("subtaskId"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}
