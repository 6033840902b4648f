package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studytrack/backend/internal/middleware"
	"studytrack/backend/internal/service"
)

type SettingsHandler struct {
	userService *service.UserService
}

func NewSettingsHandler(userService *service.UserService) *SettingsHandler {
	return &SettingsHandler{userService: userService}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	settings, apiErr := h.userService.Settings(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var req service.SettingsInput
	if !bindJSON(c, &req) {
		return
	}

	settings, apiErr := h.userService.UpdateSettings(c.Request.Context(), middleware.UserID(c), req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}
