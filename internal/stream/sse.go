package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SSEHandler streams a deck's event channel as server-sent events.
// Frames are `event: <type>` with the JSON event as data; a done event ends
// the stream.
func SSEHandler(b *Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		deckID := c.Param("id")
		if deckID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing deck id"})
			return
		}

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Header("Access-Control-Allow-Origin", "*")

		ctx := c.Request.Context()
		events, cancel := b.Subscribe(ctx, deckID)
		defer cancel()

		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(c.Writer, ": keep-alive\n\n")
				flusher.Flush()
			case ev, open := <-events:
				if !open {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data)
				flusher.Flush()
				if ev.Type == EventDone {
					return
				}
			}
		}
	}
}
