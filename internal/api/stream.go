package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	// CORS does not cover websocket upgrades. The stream is read-only
	// color data and the daemon binds to localhost in typical
	// deployments, so any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// colorFrame is one websocket message: the instance's current colors.
type colorFrame struct {
	Colors map[string]uint32 `json:"colors"`
}

// stream pushes an instance's color snapshots to the client at the
// frame cadence until either side goes away.
func (s *Server) stream(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.sched.Colors(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	frames, cancel := s.sched.Subscribe(id)
	defer cancel()

	// Reader goroutine: the client sends nothing meaningful; we only
	// need to notice the connection closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case colors, ok := <-frames:
			if !ok {
				return
			}
			if err := conn.WriteJSON(colorFrame{Colors: colors}); err != nil {
				return
			}
		}
	}
}
