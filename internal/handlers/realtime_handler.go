package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/threadloom/backend/internal/realtime"
	"go.uber.org/zap"
)

const heartbeatInterval = 25 * time.Second

// RealtimeHandler serves the server-sent-events stream
type RealtimeHandler struct {
	hub *realtime.Hub
	log *zap.Logger
}

// NewRealtimeHandler creates a new RealtimeHandler
func NewRealtimeHandler(hub *realtime.Hub, log *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, log: log}
}

// RegisterRealtimeRoutes registers the event stream route
func (h *RealtimeHandler) RegisterRealtimeRoutes(g *echo.Group) {
	g.GET("/realtime", h.Stream)
}

// Stream holds the connection open and writes hub events as SSE frames.
// Authenticated connections receive their private events plus public
// broadcasts; anonymous connections receive broadcasts only.
func (h *RealtimeHandler) Stream(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	userID := getUserIDFromContext(c)
	ctx := c.Request().Context()
	events, cleanup := h.hub.Subscribe(ctx, userID)
	defer cleanup()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-events:
			data, err := json.Marshal(event.Payload)
			if err != nil {
				h.log.Warn("encoding event payload", zap.String("event", event.Name), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event.Name, data); err != nil {
				return nil
			}
			res.Flush()

		case <-heartbeat.C:
			// Comment frame keeps intermediaries from closing idle
			// connections.
			if _, err := fmt.Fprint(res, ": heartbeat\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
