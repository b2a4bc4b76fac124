package frameHandler

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"
)

const progressPushInterval = time.Second

// StreamProgress pushes a progress snapshot once per second until the
// client hangs up. Snapshots keep flowing after processing finishes so a
// reconnecting client still sees the final counts.
func (h *FrameHandler) StreamProgress(c *websocket.Conn) {
	sessionID := c.Params("id")

	h.log.Info("Progress WebSocket client connected")
	defer h.log.Info("Progress WebSocket client disconnected")

	if sessionID == "" {
		if err := c.WriteJSON(map[string]string{"error": "session ID is required"}); err != nil {
			h.log.Errorf("Error writing error response: %v", err)
		}
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			snapshot, err := h.frameService.Progress(ctx, sessionID)
			cancel()
			if err != nil {
				if writeErr := c.WriteJSON(map[string]string{"error": err.Error()}); writeErr != nil {
					h.log.Errorf("Error sending error response: %v", writeErr)
					return
				}
				continue
			}

			if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				h.log.Errorf("Error setting write deadline: %v", err)
				return
			}

			if err := c.WriteJSON(snapshot); err != nil {
				return
			}
		}
	}
}
