package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"backtest-lab/internal/jobs"
)

const (
	wsPollInterval  = 250 * time.Millisecond
	wsWriteTimeout  = 10 * time.Second
	wsMaxStreamTime = 30 * time.Minute
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The service has no browser origin of its own; progress streams are
	// consumed by CLI and dashboard clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamJob upgrades the connection and pushes job status snapshots until
// the job reaches a terminal state. Each message is one jobs.Status as JSON;
// snapshots are sent only when the status changes.
func (h *Handler) StreamJob(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := h.scheduler.Status(jobID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found", "id": jobID})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Printf("ws stream opened job=%s", jobID)
	defer h.logger.Printf("ws stream closed job=%s", jobID)

	ticker := time.NewTicker(wsPollInterval)
	defer ticker.Stop()
	deadline := time.After(wsMaxStreamTime)

	var lastState jobs.State
	lastProgress := -1.0
	for {
		status, err := h.scheduler.Status(jobID)
		if err != nil {
			return
		}

		if status.State != lastState || status.Progress != lastProgress {
			lastState = status.State
			lastProgress = status.Progress
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(status); err != nil {
				return
			}
		}

		if isTerminal(status.State) {
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(status.State)))
			return
		}

		select {
		case <-ticker.C:
		case <-deadline:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func isTerminal(state jobs.State) bool {
	switch state {
	case jobs.StateCompleted, jobs.StateFailed, jobs.StateCancelled:
		return true
	}
	return false
}
