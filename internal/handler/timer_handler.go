package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "focustimer/backend/internal/errors"
	"focustimer/backend/internal/service"
	"focustimer/backend/internal/timer"
)

type TimerHandler struct {
	focusService *service.FocusService
}

type startRequest struct {
	TaskID               string `json:"taskId"`
	FocusDurationSeconds int    `json:"focusDurationSeconds"`
}

type delayRequest struct {
	DelayDurationSeconds int `json:"delayDurationSeconds"`
}

type updateConfigRequest struct {
	FocusDurationSeconds int `json:"focusDurationSeconds"`
	BreakDurationSeconds int `json:"breakDurationSeconds"`
	DelayDurationSeconds int `json:"delayDurationSeconds"`
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

func NewTimerHandler(focusService *service.FocusService) *TimerHandler {
	return &TimerHandler{focusService: focusService}
}

func (h *TimerHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":   h.focusService.State(),
		"visible": h.focusService.Visible(),
	})
}

func (h *TimerHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	writeState(c, func() (*timer.View, *apperrors.APIError) {
		return h.focusService.Start(req.TaskID, req.FocusDurationSeconds)
	})
}

func (h *TimerHandler) Delay(c *gin.Context) {
	var req delayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	writeState(c, func() (*timer.View, *apperrors.APIError) {
		return h.focusService.DelayStart(req.DelayDurationSeconds)
	})
}

func (h *TimerHandler) Stop(c *gin.Context) {
	writeState(c, h.focusService.Stop)
}

func (h *TimerHandler) Complete(c *gin.Context) {
	writeState(c, h.focusService.Complete)
}

func (h *TimerHandler) Pause(c *gin.Context) {
	writeState(c, h.focusService.Pause)
}

func (h *TimerHandler) Resume(c *gin.Context) {
	writeState(c, h.focusService.Resume)
}

func (h *TimerHandler) StartNow(c *gin.Context) {
	writeState(c, h.focusService.StartNow)
}

func (h *TimerHandler) UpdateConfig(c *gin.Context) {
	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	writeState(c, func() (*timer.View, *apperrors.APIError) {
		return h.focusService.UpdateConfig(req.FocusDurationSeconds, req.BreakDurationSeconds, req.DelayDurationSeconds)
	})
}

func (h *TimerHandler) SetVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	if req.Visible == nil {
		writeError(c, apperrors.BadRequest("invalid_visibility", "visible is required"))
		return
	}
	state := h.focusService.SetVisible(*req.Visible)
	c.JSON(http.StatusOK, gin.H{"state": state, "visible": *req.Visible})
}

func writeState(c *gin.Context, run func() (*timer.View, *apperrors.APIError)) {
	state, apiErr := run()
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
