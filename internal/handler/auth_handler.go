package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studytrack/backend/internal/middleware"
	"studytrack/backend/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	userService *service.UserService
}

func NewAuthHandler(authService *service.AuthService, userService *service.UserService) *AuthHandler {
	return &AuthHandler{authService: authService, userService: userService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterInput
	if !bindJSON(c, &req) {
		return
	}

	result, apiErr := h.authService.Register(c.Request.Context(), req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginInput
	if !bindJSON(c, &req) {
		return
	}

	result, apiErr := h.authService.Login(c.Request.Context(), req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Me returns the caller's profile and settings.
func (h *AuthHandler) Me(c *gin.Context) {
	profile, apiErr := h.userService.Profile(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, profile)
}
