package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focustimer/backend/internal/notify"
	"focustimer/backend/internal/service"
	"focustimer/backend/internal/stream"
)

type EventHandler struct {
	hub          *stream.Hub
	center       *notify.Center
	focusService *service.FocusService
}

func NewEventHandler(hub *stream.Hub, center *notify.Center, focusService *service.FocusService) *EventHandler {
	return &EventHandler{hub: hub, center: center, focusService: focusService}
}

// Stream serves UI events as server-sent events until the client leaves.
// The first event is always the current state.
func (h *EventHandler) Stream(c *gin.Context) {
	_, events, unsubscribe := h.hub.Subscribe(64)
	defer unsubscribe()
	changes, stopChanges := h.center.Subscribe(16)
	defer stopChanges()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.SSEvent(stream.EventState, h.focusService.State())
	c.Writer.Flush()

	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(event.Type, event.Data)
		case change, ok := <-changes:
			if !ok {
				return
			}
			c.SSEvent(stream.EventNotification, change)
		}
		c.Writer.Flush()
	}
}
