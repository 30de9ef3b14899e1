package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vivianur/hackathon-web/internal/middleware"
	"github.com/vivianur/hackathon-web/internal/service"
)

type AlertHandler struct {
	pomodoroService *service.PomodoroService
}

func NewAlertHandler(pomodoroService *service.PomodoroService) *AlertHandler {
	return &AlertHandler{pomodoroService: pomodoroService}
}

func (h *AlertHandler) Get(c *gin.Context) {
	alert, apiErr := h.pomodoroService.GetAlert(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": alert})
}

// Dismiss clears the pending alert and returns the one queued behind it.
func (h *AlertHandler) Dismiss(c *gin.Context) {
	alert, apiErr := h.pomodoroService.DismissAlert(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": alert})
}
