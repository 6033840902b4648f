package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studytrack/backend/internal/middleware"
	"studytrack/backend/internal/service"
)

type SubjectHandler struct {
	subjectService *service.SubjectService
}

func NewSubjectHandler(subjectService *service.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjectService: subjectService}
}

// List returns every subject; ?active=true hides archived ones.
func (h *SubjectHandler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	subjects, apiErr := h.subjectService.List(c.Request.Context(), middleware.UserID(c), activeOnly)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

func (h *SubjectHandler) Create(c *gin.Context) {
	var req service.SubjectInput
	if !bindJSON(c, &req) {
		return
	}

	subject, apiErr := h.subjectService.Create(c.Request.Context(), middleware.UserID(c), req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subject": subject})
}

func (h *SubjectHandler) Update(c *gin.Context) {
	var req service.SubjectInput
	if !bindJSON(c, &req) {
		return
	}

	subject, apiErr := h.subjectService.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": subject})
}

func (h *SubjectHandler) ToggleArchive(c *gin.Context) {
	subject, apiErr := h.subjectService.ToggleArchive(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": subject})
}
