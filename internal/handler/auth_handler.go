package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vivianur/hackathon-web/internal/middleware"
	"github.com/vivianur/hackathon-web/internal/service"
)

type AuthHandler struct {
	authService    *service.AuthService
	profileService *service.ProfileService
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name               *string  `json:"name"`
	Neurodivergences   []string `json:"neurodivergences"`
	PreferredStudyTime *string  `json:"preferredStudyTime"`
	SessionMinutes     *int     `json:"sessionMinutes"`
	BreakMinutes       *int     `json:"breakMinutes"`
	FocusTechnique     *string  `json:"focusTechnique"`
}

func NewAuthHandler(authService *service.AuthService, profileService *service.ProfileService) *AuthHandler {
	return &AuthHandler{authService: authService, profileService: profileService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	result, apiErr := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, apiErr := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Me returns the profile of the token's owner.
func (h *AuthHandler) Me(c *gin.Context) {
	user, apiErr := h.profileService.Get(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, apiErr := h.profileService.Update(c.Request.Context(), middleware.UserID(c), service.ProfileInput{
		Name:               req.Name,
		Neurodivergences:   req.Neurodivergences,
		PreferredStudyTime: req.PreferredStudyTime,
		SessionMinutes:     req.SessionMinutes,
		BreakMinutes:       req.BreakMinutes,
		FocusTechnique:     req.FocusTechnique,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
