package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studytrack/backend/internal/middleware"
	"studytrack/backend/internal/service"
)

type GoalHandler struct {
	goalService *service.GoalService
}

func NewGoalHandler(goalService *service.GoalService) *GoalHandler {
	return &GoalHandler{goalService: goalService}
}

func (h *GoalHandler) Today(c *gin.Context) {
	goal, apiErr := h.goalService.Today(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, goal)
}

func (h *GoalHandler) SetTarget(c *gin.Context) {
	var req service.TargetInput
	if !bindJSON(c, &req) {
		return
	}

	goal, apiErr := h.goalService.SetTarget(c.Request.Context(), middleware.UserID(c), req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, goal)
}

func (h *GoalHandler) AddHabit(c *gin.Context) {
	var req service.HabitInput
	if !bindJSON(c, &req) {
		return
	}

	habit, apiErr := h.goalService.AddHabit(c.Request.Context(), middleware.UserID(c), req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"habit": habit})
}

func (h *GoalHandler) ToggleHabit(c *gin.Context) {
	habit, apiErr := h.goalService.ToggleHabit(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habit": habit})
}

func (h *GoalHandler) DeleteHabit(c *gin.Context) {
	if apiErr := h.goalService.DeleteHabit(c.Request.Context(), middleware.UserID(c), c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}
