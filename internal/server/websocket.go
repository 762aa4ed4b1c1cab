// Package server manages individual WebSocket clients, handling read and
// write pumps, rate limiting, and lifecycle control for each connection.
// A WebSocket session speaks the same line protocol as the TCP transport:
// each text frame carries exactly one protocol line.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relaymesh/chatrelay/internal/chat"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Server is the HTTP surface of the relay: the WebSocket transport plus
// the health endpoint.
type Server struct {
	cfg      Config
	log      *zap.Logger
	manager  *chat.Manager
	origins  originPolicy
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool

	wg sync.WaitGroup
}

// NewServer creates the WebSocket/health surface bound to the given
// routing engine. A nil logger installs a nop logger.
func NewServer(cfg *Config, manager *chat.Manager, log *zap.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		cfg:     cfg.sanitized(),
		log:     log,
		manager: manager,
		origins: newOriginPolicy(cfg.AllowedOrigins),
		clients: make(map[*wsClient]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.origins.check(r) {
		return true
	}
	s.log.Warn("blocked websocket connection from disallowed origin",
		zap.String("origin", r.Header.Get("Origin")))
	return false
}

// wsClient couples one upgraded connection with its session handle and
// protocol state.
type wsClient struct {
	server  *Server
	conn    *websocket.Conn
	sess    *session
	state   *connState
	limiter *rateLimiter
	log     *zap.Logger
}

func (s *Server) startClient(conn *websocket.Conn, remote string) {
	sess := newSession()
	log := s.log.With(
		zap.String("session", sess.id),
		zap.String("remote", remote),
	)

	client := &wsClient{
		server:  s,
		conn:    conn,
		sess:    sess,
		state:   newConnState(s.manager, sess, log),
		limiter: newRateLimiter(s.cfg.RateLimit.Burst, s.cfg.RateLimit.RefillInterval),
		log:     log,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	log.Info("websocket client connected")

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
}

func (s *Server) removeClient(client *wsClient) {
	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
}

// readPump decodes frames into protocol lines and applies them. It owns
// connection teardown: once the read side fails or the client quits, the
// session leaves the routing engine and the write pump is released.
func (c *wsClient) readPump() {
	defer func() {
		c.state.teardown()
		c.sess.close()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("close failed", zap.Error(err))
		}
		c.server.removeClient(c)
		c.log.Info("websocket client disconnected")
	}()

	c.conn.SetReadLimit(c.server.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if c.state.handleCommand(line) {
				return
			}
			continue
		}

		if !c.limiter.allow() {
			c.log.Warn("rate limit exceeded; discarding message")
			c.sess.Send(rateLimited)
			continue
		}

		c.state.handleChat(line)
	}
}

// logReadError triages read failures: expected closes at info level,
// everything else as a warning.
func (c *wsClient) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("message exceeded maximum size",
			zap.Int64("max_message_size", c.server.cfg.MaxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("client closed connection", zap.Error(err))
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Info("connection closed", zap.Error(err))
	default:
		c.log.Warn("websocket read failed", zap.Error(err))
	}
}

// writePump drains the session queue onto the socket and keeps the
// connection alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("close failed", zap.Error(err))
		}
	}()

	for {
		select {
		case line, ok := <-c.sess.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					c.log.Warn("writing close message failed", zap.Error(err))
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Warn("write failed", zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Warn("ping failed", zap.Error(err))
				}
				return
			}
		}
	}
}

// Shutdown closes every live WebSocket connection and waits up to
// timeout for the pump goroutines to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	s.closed = true
	clients := make([]*wsClient, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	for _, client := range clients {
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Warn("closing websocket connection failed", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("websocket transport shut down", zap.Int("connections_closed", len(clients)))
		return nil
	case <-time.After(timeout):
		s.log.Warn("websocket shutdown timeout reached; some pumps may still be running")
		return context.DeadlineExceeded
	}
}
