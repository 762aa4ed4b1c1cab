package chat

import "sync"

// Handle is one live connected session as seen by the routing engine. The
// owning transport holds the socket; Send only enqueues the line onto the
// transport's write pump and must never block on network I/O. It reports
// false once the session can no longer accept output (closed, or its
// queue is full).
type Handle interface {
	ID() string
	Send(line string) bool
}

// SessionDirectory maps a user identity to the set of live handles for
// that identity. A user connected from several sessions at once has
// several handles; every one of them receives fan-out.
type SessionDirectory struct {
	mu       sync.RWMutex
	sessions map[string]map[Handle]struct{}
}

// NewSessionDirectory returns an empty directory.
func NewSessionDirectory() *SessionDirectory {
	return &SessionDirectory{sessions: make(map[string]map[Handle]struct{})}
}

// AddSession registers handle under userID, creating the entry on first
// login for that identity. Registering the same handle twice is a no-op.
func (d *SessionDirectory) AddSession(userID string, handle Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.sessions[userID]
	if !ok {
		set = make(map[Handle]struct{})
		d.sessions[userID] = set
	}
	set[handle] = struct{}{}
}

// RemoveSession drops handle from userID's entry and deletes the entry
// once its handle set is empty, so disconnected identities do not linger
// and do not receive future fan-out. Removing an unknown handle or user
// is a no-op.
func (d *SessionDirectory) RemoveSession(userID string, handle Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.sessions[userID]
	if !ok {
		return
	}
	delete(set, handle)
	if len(set) == 0 {
		delete(d.sessions, userID)
	}
}

// HandlesFor returns a snapshot of the live handles for userID. An empty
// result is not an error; it simply means no delivery occurs.
func (d *SessionDirectory) HandlesFor(userID string) []Handle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	set := d.sessions[userID]
	if len(set) == 0 {
		return nil
	}
	handles := make([]Handle, 0, len(set))
	for h := range set {
		handles = append(handles, h)
	}
	return handles
}

// Users returns the number of identities holding at least one live session.
func (d *SessionDirectory) Users() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}
