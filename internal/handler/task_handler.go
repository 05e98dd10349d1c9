package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focustimer/backend/internal/service"
)

type TaskHandler struct {
	focusService *service.FocusService
}

func NewTaskHandler(focusService *service.FocusService) *TaskHandler {
	return &TaskHandler{focusService: focusService}
}

func (h *TaskHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.focusService.ListTasks()})
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req service.AddTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	task, apiErr := h.focusService.AddTask(req)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

func (h *TaskHandler) Delete(c *gin.Context) {
	if apiErr := h.focusService.DeleteTask(c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) ListCompleted(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.focusService.ListCompleted()})
}

func (h *TaskHandler) ListNotices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notices": h.focusService.Notices()})
}

func (h *TaskHandler) DismissNotice(c *gin.Context) {
	if apiErr := h.focusService.DismissNotice(c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}
