package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/crimson-sun/logdeck/internal/filter"
	"github.com/crimson-sun/logdeck/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and re-broadcasts the live tail.
// New clients first receive the retained window so the view is not empty
// until the next line arrives.
func (s *Server) handleWebSocket(c *gin.Context) {
	if s.tailer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live tail disabled"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Read pump, only to detect client disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	sub := s.tailer.Subscribe()
	defer s.tailer.Unsubscribe(sub)

	for _, line := range s.tailer.Snapshot() {
		if err := conn.WriteJSON(toWire(line, s.loc)); err != nil {
			return
		}
	}

	for line := range sub {
		if err := conn.WriteJSON(toWire(line, s.loc)); err != nil {
			slog.Debug("websocket write failed", "error", err)
			return
		}
	}
}

func toWire(line model.LogLine, loc *time.Location) wireLine {
	wl := wireLine{
		Source: line.Source,
		Level:  string(filter.Classify(line.Raw)),
		Text:   line.Raw,
		Stamp:  stamp(line, loc),
	}
	if line.Instant != nil {
		wl.Time = line.Instant.Format(time.RFC3339Nano)
	}
	return wl
}
