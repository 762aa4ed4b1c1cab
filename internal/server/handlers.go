// Package server exposes the HTTP handlers of the relay: WebSocket
// upgrades and the health check.
package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// HandleWebSocket upgrades a GET request to a WebSocket chat session and
// hands the connection to the transport's pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.startClient(conn, r.RemoteAddr)
}

// HealthHandler provides a simple health check endpoint that responds
// with a plain text message indicating the relay is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat relay is running!")
}
