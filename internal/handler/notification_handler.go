package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "focustimer/backend/internal/errors"
	"focustimer/backend/internal/notify"
	"focustimer/backend/internal/worker"
)

type NotificationHandler struct {
	center *notify.Center
	worker *worker.Worker
}

type clickRequest struct {
	Token string `json:"token"`
}

type permissionRequest struct {
	Granted *bool `json:"granted"`
}

func NewNotificationHandler(center *notify.Center, w *worker.Worker) *NotificationHandler {
	return &NotificationHandler{center: center, worker: w}
}

// List returns what the platform is showing, plus the background
// context's own view of the countdown.
func (h *NotificationHandler) List(c *gin.Context) {
	body := gin.H{"notifications": h.center.Visible()}
	if status, ok := h.worker.Status(); ok {
		body["background"] = status
	}
	c.JSON(http.StatusOK, body)
}

func (h *NotificationHandler) Click(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		writeInvalidJSON(c)
		return
	}

	command, err := h.worker.HandleClick(req.Token)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"command": command})
	case errors.Is(err, notify.ErrInvalidToken):
		writeError(c, apperrors.Unauthorized("invalid notification token"))
	case errors.Is(err, worker.ErrStaleAction):
		writeError(c, apperrors.Conflict("stale_action", err.Error(), nil))
	case errors.Is(err, worker.ErrUnknownAction):
		writeError(c, apperrors.BadRequest("unknown_action", err.Error()))
	default:
		writeError(c, apperrors.Internal(""))
	}
}

// SetPermission mirrors the browser's notification permission. Revoking it
// hides every notification; later renders fail quietly.
func (h *NotificationHandler) SetPermission(c *gin.Context) {
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Granted == nil {
		writeInvalidJSON(c)
		return
	}
	h.center.SetPermission(*req.Granted)
	c.JSON(http.StatusOK, gin.H{"granted": *req.Granted})
}
