package server

import (
	"testing"

	"github.com/relaymesh/chatrelay/internal/chat"
)

// TestParseLoginFull verifies parsing of a complete login line including
// the history count.
func TestParseLoginFull(t *testing.T) {
	cmd, err := parseCommand("/login/alice/public/general/20")
	if err != nil {
		t.Fatalf("parseCommand failed: %v", err)
	}

	if cmd.name != cmdLogin {
		t.Errorf("name = %q, want login", cmd.name)
	}
	if cmd.user != "alice" || cmd.target != "general" {
		t.Errorf("user/target = %q/%q, want alice/general", cmd.user, cmd.target)
	}
	if cmd.kind != chat.Group {
		t.Errorf("kind = %v, want Group", cmd.kind)
	}
	if cmd.historyCount != 20 {
		t.Errorf("historyCount = %d, want 20", cmd.historyCount)
	}
}

// TestParseLoginDefaultHistoryCount verifies that the trailing count is
// optional and defaults to 10.
func TestParseLoginDefaultHistoryCount(t *testing.T) {
	for _, line := range []string{
		"/login/bob/private/alice",
		"/login/bob/private/alice/",
	} {
		cmd, err := parseCommand(line)
		if err != nil {
			t.Fatalf("parseCommand(%q) failed: %v", line, err)
		}
		if cmd.kind != chat.Private {
			t.Errorf("kind = %v, want Private", cmd.kind)
		}
		if cmd.historyCount != defaultHistoryCount {
			t.Errorf("historyCount = %d, want %d", cmd.historyCount, defaultHistoryCount)
		}
	}
}

// TestParseQuit verifies the quit command.
func TestParseQuit(t *testing.T) {
	cmd, err := parseCommand("/quit")
	if err != nil {
		t.Fatalf("parseCommand failed: %v", err)
	}
	if cmd.name != cmdQuit {
		t.Errorf("name = %q, want quit", cmd.name)
	}
}

// TestParseCommandRejectsMalformedInput verifies that malformed command
// lines come back as errors rather than partially parsed commands.
func TestParseCommandRejectsMalformedInput(t *testing.T) {
	lines := []string{
		"/",
		"/bogus",
		"/login",
		"/login/alice",
		"/login/alice/public",
		"/login//public/general",
		"/login/alice/public/",
		"/login/alice/sideways/general",
		"/login/alice/public/general/ten",
		"/login/alice/public/general/-1",
		"/login/alice/public/general/10/extra",
	}

	for _, line := range lines {
		if _, err := parseCommand(line); err == nil {
			t.Errorf("parseCommand(%q) succeeded, want error", line)
		}
	}
}
