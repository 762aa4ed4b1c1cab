package chat

import (
	"errors"
	"sort"
	"sync"
)

// ErrMembershipFull is returned when a third distinct identity attempts
// to join a private conversation.
var ErrMembershipFull = errors.New("chat: private conversation already has two members")

// DefaultHistorySize bounds a conversation's retained history unless the
// manager is configured otherwise.
const DefaultHistorySize = 100

// Conversation is a group room or a private pair. Both variants share the
// bounded FIFO history and the member set; the Kind discriminant selects
// the membership and message-acceptance policy.
type Conversation struct {
	id   string
	kind Kind

	mu      sync.RWMutex
	history *ring
	members map[string]struct{}
}

func newConversation(id string, kind Kind, historySize int) *Conversation {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Conversation{
		id:      id,
		kind:    kind,
		history: newRing(historySize),
		members: make(map[string]struct{}),
	}
}

// ID returns the conversation's stable identifier.
func (c *Conversation) ID() string { return c.id }

// Kind reports whether this is a group room or a private pair.
func (c *Conversation) Kind() Kind { return c.kind }

// AddMessage appends msg to the history if the variant's policy accepts
// it, evicting the oldest entry on overflow. A rejected message is a
// deliberate no-op, not a failure: a handler pushing the wrong kind must
// not be able to disturb the conversation or crash the server.
func (c *Conversation) AddMessage(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accepts(msg) {
		return
	}
	c.history.push(msg)
}

// accepts implements the per-variant policy. Callers hold c.mu.
func (c *Conversation) accepts(msg Message) bool {
	if c.kind == Private {
		if msg.Kind != Private {
			return false
		}
		_, senderOK := c.members[msg.Sender]
		_, recipientOK := c.members[msg.Recipient]
		return senderOK && recipientOK
	}
	return msg.Kind == Group
}

// Recent returns the last min(count, history length) messages in
// chronological order. Pure read.
func (c *Conversation) Recent(count int) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history.last(count)
}

// AddMember adds userID to the member set. Group conversations accept any
// identity idempotently; a private conversation holds at most two
// distinct identities and rejects a third with ErrMembershipFull.
func (c *Conversation) AddMember(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[userID]; ok {
		return nil
	}
	if c.kind == Private && len(c.members) >= 2 {
		return ErrMembershipFull
	}
	c.members[userID] = struct{}{}
	return nil
}

// RemoveMember drops userID from the member set. Removing a non-member is
// a no-op.
func (c *Conversation) RemoveMember(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.members, userID)
}

// Members returns a sorted snapshot of the current member identities.
func (c *Conversation) Members() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	members := make([]string, 0, len(c.members))
	for id := range c.members {
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

// otherMember returns the participant that is not userID, or "" when the
// pair is not yet complete. Callers hold c.mu.
func (c *Conversation) otherMember(userID string) string {
	for id := range c.members {
		if id != userID {
			return id
		}
	}
	return ""
}
