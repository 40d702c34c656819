package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mediaforge/internal/events"
)

// EventsHandler streams job-state transitions over SSE.
type EventsHandler struct {
	Broker *events.Broker
}

// NewEventsHandler builds an EventsHandler.
func NewEventsHandler(broker *events.Broker) *EventsHandler {
	return &EventsHandler{Broker: broker}
}

// Stream handles GET /queue/events, per spec §4.11: a long-lived SSE
// connection fanning out every job-state transition until the client
// disconnects.
func (h *EventsHandler) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	sub := h.Broker.Subscribe(32)
	defer sub.Close()

	ctx := c.Request.Context()
	flusher, canFlush := c.Writer.(http.Flusher)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := c.Writer.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := c.Writer.WriteString("event: " + string(event.Kind) + "\ndata: " + string(data) + "\n\n"); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}
