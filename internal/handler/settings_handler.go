package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vivianur/hackathon-web/internal/middleware"
	"github.com/vivianur/hackathon-web/internal/service"
)

type SettingsHandler struct {
	settingsService *service.SettingsService
}

type settingsRequest struct {
	ComplexityLevel   *string `json:"complexityLevel"`
	FocusMode         *bool   `json:"focusMode"`
	DetailedMode      *bool   `json:"detailedMode"`
	ContrastLevel     *string `json:"contrastLevel"`
	FontSize          *string `json:"fontSize"`
	Spacing           *string `json:"spacing"`
	AnimationsEnabled *bool   `json:"animationsEnabled"`
	CognitiveAlerts   *bool   `json:"cognitiveAlerts"`
	VLibrasEnabled    *bool   `json:"vlibrasEnabled"`
}

func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	settings, apiErr := h.settingsService.Get(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var req settingsRequest
	if !bindJSON(c, &req) {
		return
	}

	settings, apiErr := h.settingsService.Update(c.Request.Context(), middleware.UserID(c), service.SettingsInput{
		ComplexityLevel:   req.ComplexityLevel,
		FocusMode:         req.FocusMode,
		DetailedMode:      req.DetailedMode,
		ContrastLevel:     req.ContrastLevel,
		FontSize:          req.FontSize,
		Spacing:           req.Spacing,
		AnimationsEnabled: req.AnimationsEnabled,
		CognitiveAlerts:   req.CognitiveAlerts,
		VLibrasEnabled:    req.VLibrasEnabled,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *SettingsHandler) Reset(c *gin.Context) {
	settings, apiErr := h.settingsService.Reset(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}
