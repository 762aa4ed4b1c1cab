package integration

import (
	"strings"
	"testing"
	"time"

	"github.com/relaymesh/chatrelay/internal/chat"
	"github.com/relaymesh/chatrelay/internal/server"
	"github.com/relaymesh/chatrelay/test/testhelpers"
)

// TestRateLimitDiscardsExcessMessages verifies that a client bursting
// past its token bucket has the excess discarded with a notice, while
// messages within the budget still reach the room.
func TestRateLimitDiscardsExcessMessages(t *testing.T) {
	manager := chat.NewManager(nil, 0)
	cfg := server.NewConfig()
	cfg.RateLimit.Burst = 2
	cfg.RateLimit.RefillInterval = time.Hour

	addr := testhelpers.StartTCPRelay(t, manager, cfg)

	alice := testhelpers.DialChat(t, addr)
	alice.Login("alice", "public", "general", 10)
	alice.MustReadLine(readTimeout)

	bob := testhelpers.DialChat(t, addr)
	bob.Login("bob", "public", "general", 10)
	bob.MustReadLine(readTimeout)

	for _, msg := range []string{"one", "two", "three", "four"} {
		alice.Send(msg)
	}

	for _, want := range []string{"one", "two"} {
		line := bob.MustReadLine(readTimeout)
		if m := messageLine.FindStringSubmatch(line); m == nil || m[2] != want {
			t.Fatalf("bob received %q, want alice: %s", line, want)
		}
	}
	bob.AssertNoLine(200 * time.Millisecond)

	// The sender is told about each discarded message.
	notice := alice.MustReadLine(readTimeout)
	if !strings.Contains(notice, "rate limiter") {
		t.Errorf("notice = %q, want a rate limiter notice", notice)
	}
}

// TestOversizedLineDropsConnection verifies that a line beyond
// MaxMessageSize terminates only the offending session; the room and the
// remaining members keep working.
func TestOversizedLineDropsConnection(t *testing.T) {
	manager := chat.NewManager(nil, 0)
	cfg := server.NewConfig()
	cfg.MaxMessageSize = 64

	addr := testhelpers.StartTCPRelay(t, manager, cfg)

	alice := testhelpers.DialChat(t, addr)
	alice.Login("alice", "public", "general", 10)
	alice.MustReadLine(readTimeout)

	bob := testhelpers.DialChat(t, addr)
	bob.Login("bob", "public", "general", 10)
	bob.MustReadLine(readTimeout)

	bob.Send(strings.Repeat("x", 500))
	bob.AssertClosed(readTimeout)

	carol := testhelpers.DialChat(t, addr)
	carol.Login("carol", "public", "general", 10)
	if got := carol.MustReadLine(readTimeout); got != "Joined room general" {
		t.Errorf("join after oversized-line disconnect failed: %q", got)
	}
}

// TestRelogins verifies that re-logging in moves the session: the old
// room stops delivering to it and the new one starts.
func TestRelogins(t *testing.T) {
	manager := chat.NewManager(nil, 0)
	addr := testhelpers.StartTCPRelay(t, manager, nil)

	alice := testhelpers.DialChat(t, addr)
	alice.Login("alice", "public", "first", 10)
	alice.MustReadLine(readTimeout)

	alice.Login("alice", "public", "second", 10)
	if got := alice.MustReadLine(readTimeout); got != "Joined room second" {
		t.Fatalf("re-login confirmation = %q", got)
	}

	bob := testhelpers.DialChat(t, addr)
	bob.Login("bob", "public", "first", 10)
	bob.MustReadLine(readTimeout)
	bob.Send("anyone in first?")

	alice.AssertNoLine(200 * time.Millisecond)

	carol := testhelpers.DialChat(t, addr)
	carol.Login("carol", "public", "second", 10)
	carol.MustReadLine(readTimeout)
	carol.Send("hello second")

	line := alice.MustReadLine(readTimeout)
	if m := messageLine.FindStringSubmatch(line); m == nil || m[1] != "carol" {
		t.Errorf("alice received %q, want a carol line from the new room", line)
	}
}
