package chat_test

import (
	"strings"
	"testing"
	"time"

	"github.com/relaymesh/chatrelay/internal/chat"
)

// TestMessageRender verifies the display line format: a bracketed
// HH:MM:SS timestamp, the sender, and the content.
func TestMessageRender(t *testing.T) {
	msg := chat.Message{
		Content:   "hi",
		Sender:    "alice",
		Timestamp: time.Date(2026, 8, 29, 13, 4, 5, 0, time.Local),
		Kind:      chat.Group,
	}

	got := msg.Render()
	want := "[13:04:05] alice: hi"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

// TestNewMessageFlattensNewlines verifies that content containing line
// breaks is folded into a single line, so a delivered message can never
// be decoded as several separate messages.
func TestNewMessageFlattensNewlines(t *testing.T) {
	msg := chat.NewMessage("one\r\ntwo\nthree\rfour", "alice", chat.Group, "")

	if strings.ContainsAny(msg.Content, "\r\n") {
		t.Errorf("content still contains line breaks: %q", msg.Content)
	}
	if want := "one two three four"; msg.Content != want {
		t.Errorf("Content = %q, want %q", msg.Content, want)
	}
	if strings.Count(msg.Render(), "\n") != 0 {
		t.Errorf("rendered message spans multiple lines: %q", msg.Render())
	}
}

// TestNewMessageStampsCurrentTime verifies that NewMessage timestamps the
// message at construction.
func TestNewMessageStampsCurrentTime(t *testing.T) {
	before := time.Now()
	msg := chat.NewMessage("hi", "alice", chat.Group, "")
	after := time.Now()

	if msg.Timestamp.Before(before) || msg.Timestamp.After(after) {
		t.Errorf("Timestamp %v outside [%v, %v]", msg.Timestamp, before, after)
	}
}

// TestKindString verifies the discriminant names used in logs.
func TestKindString(t *testing.T) {
	if got := chat.Group.String(); got != "GROUP" {
		t.Errorf("Group.String() = %q, want GROUP", got)
	}
	if got := chat.Private.String(); got != "PRIVATE" {
		t.Errorf("Private.String() = %q, want PRIVATE", got)
	}
}
