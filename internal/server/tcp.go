// Package server implements the raw TCP transport: an accept loop with
// one read loop and one write pump per connection, speaking the
// newline-delimited chat protocol against the shared routing engine.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaymesh/chatrelay/internal/chat"
)

// TCPServer accepts raw TCP chat sessions. Each accepted connection gets
// its own goroutine pair; all cross-connection state stays inside the
// Manager.
type TCPServer struct {
	cfg     Config
	log     *zap.Logger
	manager *chat.Manager

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool

	wg sync.WaitGroup
}

// NewTCPServer creates a TCP transport bound to the given routing engine.
// A nil logger installs a nop logger.
func NewTCPServer(cfg *Config, manager *chat.Manager, log *zap.Logger) *TCPServer {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TCPServer{
		cfg:     cfg.sanitized(),
		log:     log,
		manager: manager,
		conns:   make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on the configured TCP address and serves until
// Shutdown is called.
func (s *TCPServer) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.TCPAddr, err)
	}
	return s.Serve(ln)
}

// Serve runs the accept loop on ln. It returns nil after Shutdown closes
// the listener.
func (s *TCPServer) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New("tcp server already shut down")
	}
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("tcp transport listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *TCPServer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *TCPServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *TCPServer) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// handleConn runs the read loop for one connection. It blocks only on
// its own socket; everything it does to shared state goes through the
// Manager's operations.
func (s *TCPServer) handleConn(conn net.Conn) {
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	sess := newSession()
	log := s.log.With(
		zap.String("session", sess.id),
		zap.String("remote", conn.RemoteAddr().String()),
	)
	log.Info("client connected")

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		tcpWritePump(conn, sess, log)
	}()

	state := newConnState(s.manager, sess, log)
	limiter := newRateLimiter(s.cfg.RateLimit.Burst, s.cfg.RateLimit.RefillInterval)

	// Scanner treats the larger of the buffer capacity and the max as
	// its limit, so the initial buffer must not exceed MaxMessageSize.
	maxLine := int(s.cfg.MaxMessageSize)
	initial := 1024
	if initial > maxLine {
		initial = maxLine
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, initial), maxLine)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if state.handleCommand(line) {
				break
			}
			continue
		}

		if !limiter.allow() {
			log.Warn("rate limit exceeded; discarding message",
				zap.Int("burst", s.cfg.RateLimit.Burst),
				zap.Duration("refill_interval", s.cfg.RateLimit.RefillInterval))
			sess.Send(rateLimited)
			continue
		}

		state.handleChat(line)
	}
	if err := scanner.Err(); err != nil && !isExpectedCloseError(err) {
		log.Warn("read failed", zap.Error(err))
	}

	state.teardown()
	sess.close()
	<-writeDone
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Warn("close failed", zap.Error(err))
	}
	log.Info("client disconnected")
}

// tcpWritePump drains the session queue onto the socket until the queue
// closes or a write fails. A failure here is local to this recipient; the
// sender's fan-out is long gone.
func tcpWritePump(conn net.Conn, sess *session, log *zap.Logger) {
	for line := range sess.send {
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			if !isExpectedCloseError(err) {
				log.Warn("write failed", zap.Error(err))
			}
			return
		}
	}
}

// Shutdown closes the listener and every live connection, then waits up
// to timeout for the per-connection goroutines to finish.
func (s *TCPServer) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, conn := range conns {
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Warn("closing client connection failed", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("tcp transport shut down", zap.Int("connections_closed", len(conns)))
		return nil
	case <-time.After(timeout):
		s.log.Warn("tcp shutdown timeout reached; some handlers may still be running")
		return context.DeadlineExceeded
	}
}
