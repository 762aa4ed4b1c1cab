// Package server wires the HTTP handlers into a ServeMux.
package server

import "net/http"

// Routes configures and returns an HTTP ServeMux with the health check
// and WebSocket endpoints.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", s.HandleWebSocket)
	return mux
}
