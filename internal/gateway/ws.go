package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleTimelineWS streams timeline events over a websocket. The optional
// session_id query parameter narrows the stream to one session; without it
// every event is delivered. A slow reader is disconnected rather than
// allowed to stall the hub.
func (s *Server) handleTimelineWS(w http.ResponseWriter, r *http.Request) {
	if s.timeline == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "timeline streaming is not available"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session_id")
	events, unsubscribe := s.timeline.Subscribe(sessionID)
	defer unsubscribe()

	// Reader goroutine: we never expect client frames, but reading is what
	// surfaces close frames and connection drops.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				s.logger.Debug("timeline subscriber dropped", "session_id", sessionID, "error", err)
				return
			}
		}
	}
}
