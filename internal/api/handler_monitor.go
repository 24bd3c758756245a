package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"investmon/internal/eventbus"
	"investmon/internal/metrics"
	"investmon/internal/service"
)

type MonitorHandler struct {
	svc *service.Service
}

func NewMonitorHandler(svc *service.Service) *MonitorHandler {
	return &MonitorHandler{svc: svc}
}

// Stream GET /api/monitor/stream
// Attaches the client to the live sweep stream over SSE, starting a sweep
// when none is running. Events are {type, timestamp, data} JSON lines.
func (h *MonitorHandler) Stream(c *gin.Context) {
	_, eventCh, err := h.svc.AttachStream(c.Request.Context())
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	// Disable the server-level WriteTimeout for this long-lived
	// connection, otherwise http.Server closes the TCP stream mid-sweep.
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Warn("Failed to disable write deadline for SSE", "error", err)
	}

	metrics.StreamSubscribers.Inc()
	defer metrics.StreamSubscribers.Dec()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-eventCh:
			if !ok {
				return false
			}

			// stream.done is an internal signal, close the connection
			if event.Type == eventbus.EventStreamDone {
				return false
			}

			data, err := service.EncodeWire(event)
			if err != nil {
				return false
			}

			c.SSEvent("message", data)
			return true

		case <-c.Request.Context().Done():
			// Client disconnected; the sweep itself keeps running.
			return false

		case <-time.After(30 * time.Second):
			// Heartbeat keeps proxies from closing the stream.
			c.SSEvent("ping", "")
			return true
		}
	})
}

// Snapshot GET /api/monitor/snapshot
// Returns the cached sweep state, possibly mid-stream, for consumers that
// reattach after navigation or poll as a stream fallback.
func (h *MonitorHandler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, SnapshotResponse{
		StreamRunning: h.svc.IsSweeping(),
		Snapshot:      h.svc.Snapshot(),
	})
}

// Ping GET /api/monitor/ping/:name
// Runs one synchronous re-check of a single endpoint.
func (h *MonitorHandler) Ping(c *gin.Context) {
	name := c.Param("name")

	result, err := h.svc.Ping(c.Request.Context(), name)
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	c.JSON(http.StatusOK, PingResponse{Result: result})
}
