package handlers

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/puchupala/hass-nature-remo/pkg/api/types"
	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/rs/zerolog/log"
)

const heartbeatInterval = 30 * time.Second

// EventsHandler streams device state events to clients
type EventsHandler struct {
	subscriber     device.EventSubscriber
	originPatterns []string
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(subscriber device.EventSubscriber, originPatterns []string) *EventsHandler {
	return &EventsHandler{subscriber: subscriber, originPatterns: originPatterns}
}

// Events handles GET /events (SSE stream)
// @Summary      Subscribe to state events
// @Description  Server-Sent Events stream of device_added and state_changed events
// @Tags         events
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /events [get]
func (h *EventsHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	eventChan := h.subscriber.Subscribe()
	defer h.subscriber.Unsubscribe(eventChan)

	sendSSEEvent(c.Writer, "connected", map[string]any{
		"timestamp": time.Now(),
		"message":   "Connected to state event stream",
	})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			sendSSEEvent(c.Writer, event.Type, toEventMessage(event))
			c.Writer.Flush()

		case <-ticker.C:
			sendSSEEvent(c.Writer, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			c.Writer.Flush()
		}
	}
}

// WebSocket handles GET /ws
// @Summary      Subscribe to state events over WebSocket
// @Description  WebSocket stream of device_added and state_changed events as JSON messages
// @Tags         events
// @Success      101  {string}  string  "Switching protocols"
// @Router       /ws [get]
func (h *EventsHandler) WebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected connection close")

	// Clients only listen; CloseRead handles control frames and cancels on close.
	ctx := conn.CloseRead(c.Request.Context())

	eventChan := h.subscriber.Subscribe()
	defer h.subscriber.Unsubscribe(eventChan)

	log.Debug().Str("client_ip", c.ClientIP()).Msg("websocket client connected")

	if err := h.streamEvents(ctx, conn, eventChan); err != nil {
		log.Warn().Err(err).Msg("websocket stream ended")
		conn.Close(websocket.StatusInternalError, "error writing event")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *EventsHandler) streamEvents(ctx context.Context, conn *websocket.Conn, eventChan <-chan device.StateEvent) error {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-eventChan:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, toEventMessage(event)); err != nil {
				return err
			}

		case <-heartbeat.C:
			if err := conn.Ping(ctx); err != nil {
				return err
			}
		}
	}
}

func toEventMessage(event device.StateEvent) types.EventMessage {
	msg := types.EventMessage{
		ID:        event.ID,
		Type:      event.Type,
		Timestamp: event.Timestamp,
	}
	if event.Device != nil {
		msg.Device = toDeviceWithState(event.Device, event.State)
	}
	return msg
}

// sendSSEEvent writes an SSE event to the response
func sendSSEEvent(w io.Writer, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	io.WriteString(w, "event: "+eventType+"\n")
	io.WriteString(w, "data: "+string(jsonData)+"\n\n")
}
