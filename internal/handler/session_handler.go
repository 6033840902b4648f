package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studytrack/backend/internal/middleware"
	"studytrack/backend/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
	statsService   *service.StatsService
}

func NewSessionHandler(sessionService *service.SessionService, statsService *service.StatsService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService, statsService: statsService}
}

func (h *SessionHandler) List(c *gin.Context) {
	sessions, apiErr := h.sessionService.List(c.Request.Context(), middleware.UserID(c), queryInt(c, "limit"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *SessionHandler) Grouped(c *gin.Context) {
	grouped, apiErr := h.sessionService.Grouped(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, grouped)
}

func (h *SessionHandler) Heatmap(c *gin.Context) {
	days, apiErr := h.sessionService.Heatmap(c.Request.Context(), middleware.UserID(c), queryInt(c, "days"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

func (h *SessionHandler) Export(c *gin.Context) {
	export, apiErr := h.sessionService.Export(c.Request.Context(), middleware.UserID(c), c.DefaultQuery("format", service.FormatCSV))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Body)
}

func (h *SessionHandler) Dashboard(c *gin.Context) {
	dashboard, apiErr := h.statsService.Dashboard(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// queryInt reads a positive integer query value, 0 when absent or invalid.
func queryInt(c *gin.Context, key string) int {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
