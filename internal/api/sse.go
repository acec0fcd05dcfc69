package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

var heartbeatInterval = 15 * time.Second

// handleEvents streams a "status" event with the current status and then
// one after every change, with periodic heartbeats.
func handleEvents(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		updates, cancel := svc.Subscribe()
		defer cancel()

		ctx := c.Request.Context()
		if st, err := svc.GetCurrentStatus(ctx); err == nil {
			writeSSE(c.Writer, "status", st)
			c.Writer.Flush()
		}

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case st, ok := <-updates:
				if !ok {
					return
				}
				writeSSE(c.Writer, "status", st)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
