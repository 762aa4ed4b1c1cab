// Package chat implements the concurrent session-and-routing core of the
// relay: messages, bounded-history conversations, the session directory,
// and the routing engine that fans each message out to the live handles
// of every other participant.
package chat

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates group-room traffic from 1:1 private traffic.
type Kind int

const (
	// Group messages are accepted by any group room.
	Group Kind = iota
	// Private messages carry a recipient and are accepted only by the
	// private conversation both participants belong to.
	Private
)

func (k Kind) String() string {
	if k == Private {
		return "PRIVATE"
	}
	return "GROUP"
}

// Message is one immutable chat utterance. Recipient is meaningful only
// when Kind is Private.
type Message struct {
	Content   string
	Sender    string
	Timestamp time.Time
	Kind      Kind
	Recipient string
}

// NewMessage builds a Message stamped with the current time. Line breaks
// in the content are folded to spaces so a rendered message is always
// exactly one wire line; receivers split on line terminators.
func NewMessage(content, sender string, kind Kind, recipient string) Message {
	return Message{
		Content:   flatten(content),
		Sender:    sender,
		Timestamp: time.Now(),
		Kind:      kind,
		Recipient: recipient,
	}
}

// Render produces the display line for the message, e.g.
// "[15:04:05] alice: hello". Pure function of the message fields.
func (m Message) Render() string {
	return fmt.Sprintf("[%s] %s: %s", m.Timestamp.Format("15:04:05"), m.Sender, m.Content)
}

func flatten(content string) string {
	if !strings.ContainsAny(content, "\r\n") {
		return content
	}
	content = strings.ReplaceAll(content, "\r\n", " ")
	content = strings.ReplaceAll(content, "\n", " ")
	return strings.ReplaceAll(content, "\r", " ")
}
