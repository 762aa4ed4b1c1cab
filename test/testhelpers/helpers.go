// Package testhelpers provides common utilities for testing the chat
// relay end to end: starting transports on ephemeral ports and a small
// line-protocol client with deadline-aware reads.
package testhelpers

import (
	"bufio"
	"fmt"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/relaymesh/chatrelay/internal/chat"
	"github.com/relaymesh/chatrelay/internal/server"
)

// StartTCPRelay starts the TCP transport on an ephemeral port bound to
// manager and returns its address. The transport is shut down when the
// test finishes.
func StartTCPRelay(t *testing.T, manager *chat.Manager, cfg *server.Config) string {
	t.Helper()

	srv := server.NewTCPServer(cfg, manager, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	go func() {
		_ = srv.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = srv.Shutdown(2 * time.Second)
	})

	return ln.Addr().String()
}

// StartWebRelay starts the WebSocket/health surface bound to manager on
// an httptest server. Both are torn down when the test finishes.
func StartWebRelay(t *testing.T, manager *chat.Manager, cfg *server.Config) (*httptest.Server, *server.Server) {
	t.Helper()

	webSrv := server.NewServer(cfg, manager, nil)
	ts := httptest.NewServer(webSrv.Routes())
	t.Cleanup(func() {
		ts.Close()
		_ = webSrv.Shutdown(2 * time.Second)
	})

	return ts, webSrv
}

// ChatClient is a raw TCP client speaking the relay's line protocol.
type ChatClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// DialChat connects to a running relay. The connection is closed when
// the test finishes.
func DialChat(t *testing.T, addr string) *ChatClient {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", addr, err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return &ChatClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

// Login sends a login command for the given identity and target.
func (c *ChatClient) Login(user, kind, target string, historyCount int) {
	c.t.Helper()
	c.Send(fmt.Sprintf("/login/%s/%s/%s/%d", user, kind, target, historyCount))
}

// Send writes one protocol line, failing the test on error.
func (c *ChatClient) Send(line string) {
	c.t.Helper()
	if err := c.SendErr(line); err != nil {
		c.t.Fatalf("failed to send %q: %v", line, err)
	}
}

// SendErr writes one protocol line and returns the write error, for use
// from goroutines that may not fail the test directly.
func (c *ChatClient) SendErr(line string) error {
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	return err
}

// MustReadLine reads the next server line, failing the test if none
// arrives within timeout.
func (c *ChatClient) MustReadLine(timeout time.Duration) string {
	c.t.Helper()

	line, ok := c.TryReadLine(timeout)
	if !ok {
		c.t.Fatalf("no line received within %v", timeout)
	}
	return line
}

// TryReadLine reads the next server line, reporting false on timeout or
// connection closure.
func (c *ChatClient) TryReadLine(timeout time.Duration) (string, bool) {
	c.t.Helper()

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		c.t.Fatalf("failed to set read deadline: %v", err)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

// AssertNoLine fails the test if any server line arrives within d.
func (c *ChatClient) AssertNoLine(d time.Duration) {
	c.t.Helper()
	if line, ok := c.TryReadLine(d); ok {
		c.t.Errorf("unexpected line received: %q", line)
	}
}

// AssertClosed fails the test unless the server side closes the
// connection within timeout.
func (c *ChatClient) AssertClosed(timeout time.Duration) {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := c.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
			return
		}
		if _, err := c.reader.ReadByte(); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
	}
	c.t.Error("connection still open, want server-side close")
}
