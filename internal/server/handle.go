// Package server manages the per-connection outbound queue shared by the
// TCP and WebSocket transports.
package server

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// sendQueueSize buffers outbound lines per session so a briefly slow
// reader does not block fan-out.
const sendQueueSize = 256

// session is one accepted connection as the routing engine sees it. It
// implements chat.Handle: Send enqueues a line for the transport's write
// pump and never touches the socket itself.
type session struct {
	id   string
	send chan string

	mu     sync.Mutex
	closed bool
}

func newSession() *session {
	return &session{
		id:   uuid.NewString(),
		send: make(chan string, sendQueueSize),
	}
}

// ID implements chat.Handle.
func (s *session) ID() string { return s.id }

// Send implements chat.Handle. It reports false once the session is
// closed or its queue is full; the caller's fan-out carries on to the
// remaining recipients either way.
func (s *session) Send(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- line:
		return true
	default:
		return false
	}
}

// close marks the session dead and closes the queue so the write pump
// drains and exits. Safe to call more than once.
func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "connection reset by peer") ||
		strings.Contains(errStr, "broken pipe")
}
