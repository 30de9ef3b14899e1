package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/vivianur/hackathon-web/internal/errors"
	"github.com/vivianur/hackathon-web/internal/middleware"
	"github.com/vivianur/hackathon-web/internal/pubsub"
	"github.com/vivianur/hackathon-web/internal/service"
)

const streamKeepAlive = 25 * time.Second

type PomodoroHandler struct {
	pomodoroService *service.PomodoroService
}

type versionRequest struct {
	BaseVersion int `json:"baseVersion"`
}

type focusRequest struct {
	BaseVersion     int    `json:"baseVersion"`
	TaskID          string `json:"taskId"`
	DurationSeconds int    `json:"durationSeconds"`
}

type breakRequest struct {
	BaseVersion int  `json:"baseVersion"`
	Long        bool `json:"long"`
}

func NewPomodoroHandler(pomodoroService *service.PomodoroService) *PomodoroHandler {
	return &PomodoroHandler{pomodoroService: pomodoroService}
}

func (h *PomodoroHandler) GetState(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": gin.H{"code": "unauthorized", "message": "unauthorized"},
		})
		return
	}

	state, apiErr := h.pomodoroService.GetState(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PomodoroHandler) StartFocus(c *gin.Context) {
	var req focusRequest
	if !bindJSON(c, &req) || !requireBaseVersion(c, req.BaseVersion) {
		return
	}

	state, apiErr := h.pomodoroService.StartFocus(c.Request.Context(), middleware.UserID(c), service.StartFocusInput{
		BaseVersion:     req.BaseVersion,
		TaskID:          req.TaskID,
		DurationSeconds: req.DurationSeconds,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PomodoroHandler) StartBreak(c *gin.Context) {
	var req breakRequest
	if !bindJSON(c, &req) || !requireBaseVersion(c, req.BaseVersion) {
		return
	}

	state, apiErr := h.pomodoroService.StartBreak(c.Request.Context(), middleware.UserID(c), req.BaseVersion, req.Long)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PomodoroHandler) Pause(c *gin.Context) {
	h.versioned(c, h.pomodoroService.Pause)
}

func (h *PomodoroHandler) Resume(c *gin.Context) {
	h.versioned(c, h.pomodoroService.Resume)
}

func (h *PomodoroHandler) Stop(c *gin.Context) {
	h.versioned(c, h.pomodoroService.Stop)
}

type versionedOp func(ctx context.Context, userID string, baseVersion int) (*service.StateView, *apperrors.APIError)

func (h *PomodoroHandler) versioned(c *gin.Context, op versionedOp) {
	var req versionRequest
	if !bindJSON(c, &req) || !requireBaseVersion(c, req.BaseVersion) {
		return
	}

	state, apiErr := op(c.Request.Context(), middleware.UserID(c), req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *PomodoroHandler) GetHistory(c *gin.Context) {
	limit := 0
	if rawLimit := c.Query("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "invalid_limit", "message": "limit must be an integer"},
			})
			return
		}
		limit = parsed
	}

	sessions, apiErr := h.pomodoroService.GetHistory(c.Request.Context(), middleware.UserID(c), limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Events streams state and alert notices as server-sent events. The
// current state is sent first so a client can render without a second
// request.
func (h *PomodoroHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	events := h.pomodoroService.Subscribe(ctx, userID)
	state, apiErr := h.pomodoroService.GetState(ctx, userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(string(pubsub.StateEvent), gin.H{"state": state})
	c.Writer.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			switch event.Type {
			case pubsub.StateEvent:
				c.SSEvent(string(event.Type), gin.H{"state": event.Payload.State})
			case pubsub.AlertEvent:
				c.SSEvent(string(event.Type), gin.H{"alert": event.Payload.Alert})
			}
			return true
		case <-keepAlive.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func requireBaseVersion(c *gin.Context, baseVersion int) bool {
	if baseVersion <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_base_version", "message": "baseVersion is required"},
		})
		return false
	}
	return true
}
