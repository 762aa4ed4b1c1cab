package chat

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// PrivateID derives the canonical identifier for the private conversation
// between a and b. It is a pure function of the two identities and
// independent of argument order: the identities are sorted and joined
// with an underscore, so either participant resolves to the same
// conversation.
func PrivateID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

// Manager is the routing engine. It owns the conversation table and the
// session directory; connection handlers never hold those structures,
// they only pass identities and content through the Manager's operations.
// A single Manager is created at server start and shared by every
// connection handler; all operations are safe for concurrent use.
type Manager struct {
	log         *zap.Logger
	sessions    *SessionDirectory
	historySize int

	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewManager creates a routing engine whose conversations retain up to
// historySize messages each (DefaultHistorySize when <= 0). A nil logger
// installs a nop logger.
func NewManager(log *zap.Logger, historySize int) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Manager{
		log:           log,
		sessions:      NewSessionDirectory(),
		historySize:   historySize,
		conversations: make(map[string]*Conversation),
	}
}

// GetOrCreateRoom returns the group conversation named roomID, creating
// it if absent. Lookup and creation are one critical section, so two
// handlers racing to create the same room observe exactly one
// conversation object.
func (m *Manager) GetOrCreateRoom(roomID string) *Conversation {
	return m.getOrCreate(roomID, Group, "", "")
}

// GetOrCreatePrivate resolves the canonical private conversation between
// the two participants, creating it if absent. Membership is fixed at
// creation: both participants are members from the start, and a third
// distinct identity can never join.
func (m *Manager) GetOrCreatePrivate(userA, userB string) *Conversation {
	return m.getOrCreate(PrivateID(userA, userB), Private, userA, userB)
}

func (m *Manager) getOrCreate(id string, kind Kind, userA, userB string) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.conversations[id]; ok {
		return conv
	}
	conv := newConversation(id, kind, m.historySize)
	if kind == Private {
		conv.members[userA] = struct{}{}
		conv.members[userB] = struct{}{}
	}
	m.conversations[id] = conv
	m.log.Info("conversation created",
		zap.String("conversation", id),
		zap.Stringer("kind", kind))
	return conv
}

// Lookup returns the conversation with the given id, or nil.
func (m *Manager) Lookup(id string) *Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conversations[id]
}

// Join adds userID as a member of conv and registers the caller's handle
// in the session directory. ErrMembershipFull from a private conversation
// is surfaced so the handler can inform the user; it is never fatal to
// the server.
func (m *Manager) Join(userID string, conv *Conversation, handle Handle) error {
	if err := conv.AddMember(userID); err != nil {
		return fmt.Errorf("join %s: %w", conv.ID(), err)
	}
	m.sessions.AddSession(userID, handle)
	m.log.Info("user joined",
		zap.String("user", userID),
		zap.String("conversation", conv.ID()),
		zap.String("session", handle.ID()))
	return nil
}

// Leave detaches handle from userID's live sessions and removes the
// membership in the named conversation. Safe to call when the user, the
// handle, or the conversation is already gone, and safe to call twice.
func (m *Manager) Leave(userID, convID string, handle Handle) {
	m.sessions.RemoveSession(userID, handle)
	if conv := m.Lookup(convID); conv != nil {
		conv.RemoveMember(userID)
	}
	m.log.Info("user left",
		zap.String("user", userID),
		zap.String("conversation", convID),
		zap.String("session", handle.ID()))
}

// RouteMessage stamps content as a message from senderID, records it in
// the conversation's history, and fans the rendered line out to every
// other member's live handles. A missing conversation is a silent no-op:
// the sender raced a teardown or never joined, and tearing down a healthy
// session over a stale reference helps nobody.
//
// The history append and the fan-out enumeration run under the
// conversation's lock so every recipient handle observes messages in
// history order. Handle.Send only enqueues onto the recipient's write
// pump, so no network write ever happens while the lock is held and a
// stalled recipient cannot stall unrelated conversations.
func (m *Manager) RouteMessage(content, senderID, convID string) {
	m.mu.RLock()
	conv := m.conversations[convID]
	m.mu.RUnlock()
	if conv == nil {
		m.log.Debug("message for unknown conversation dropped",
			zap.String("conversation", convID),
			zap.String("sender", senderID))
		return
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	recipient := ""
	if conv.kind == Private {
		recipient = conv.otherMember(senderID)
	}
	msg := NewMessage(content, senderID, conv.kind, recipient)
	if !conv.accepts(msg) {
		return
	}
	conv.history.push(msg)

	line := msg.Render()
	for memberID := range conv.members {
		if memberID == senderID {
			continue
		}
		for _, h := range m.sessions.HandlesFor(memberID) {
			if !h.Send(line) {
				m.log.Warn("delivery to stalled session dropped",
					zap.String("user", memberID),
					zap.String("session", h.ID()),
					zap.String("conversation", convID))
			}
		}
	}
}
