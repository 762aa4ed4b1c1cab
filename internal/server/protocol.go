// Package server parses the line-oriented wire protocol and applies it
// against the routing engine on behalf of one connected client.
package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/relaymesh/chatrelay/internal/chat"
)

const (
	cmdLogin = "login"
	cmdQuit  = "quit"

	defaultHistoryCount = 10

	usageLine     = "usage: /login/<user>/<public|private>/<target>[/<count>] or /quit"
	joinFirstLine = "Please join a room or start a private chat first."
	privateFull   = "That private chat already has two participants."
	rateLimited   = "Slow down: message discarded by rate limiter."
)

// command is one parsed slash-command line.
type command struct {
	name         string
	user         string
	kind         chat.Kind
	target       string
	historyCount int
}

// parseCommand decodes a line starting with '/'. Login lines look like
// "/login/alice/public/general/20"; the trailing history count is
// optional and defaults to 10.
func parseCommand(line string) (command, error) {
	parts := strings.Split(strings.TrimSpace(line), "/")
	if len(parts) < 2 {
		return command{}, errors.New("empty command")
	}

	switch parts[1] {
	case cmdQuit:
		return command{name: cmdQuit}, nil
	case cmdLogin:
		return parseLogin(parts)
	default:
		return command{}, fmt.Errorf("unknown command %q", parts[1])
	}
}

func parseLogin(parts []string) (command, error) {
	if len(parts) < 5 || len(parts) > 6 {
		return command{}, fmt.Errorf("login expects 3 or 4 fields, got %d", len(parts)-2)
	}

	cmd := command{
		name:         cmdLogin,
		user:         parts[2],
		target:       parts[4],
		historyCount: defaultHistoryCount,
	}
	if cmd.user == "" || cmd.target == "" {
		return command{}, errors.New("login user and target must be non-empty")
	}

	switch parts[3] {
	case "public":
		cmd.kind = chat.Group
	case "private":
		cmd.kind = chat.Private
	default:
		return command{}, fmt.Errorf("unknown chat kind %q", parts[3])
	}

	if len(parts) == 6 && parts[5] != "" {
		count, err := strconv.Atoi(parts[5])
		if err != nil || count < 0 {
			return command{}, fmt.Errorf("invalid history count %q", parts[5])
		}
		cmd.historyCount = count
	}

	return cmd, nil
}

// connState tracks one connected client's identity and current
// conversation, and applies its protocol input against the shared
// routing engine. It is confined to the connection's read loop; all
// cross-connection state lives in the Manager.
type connState struct {
	manager *chat.Manager
	sess    *session
	log     *zap.Logger

	userID string
	convID string
}

func newConnState(manager *chat.Manager, sess *session, log *zap.Logger) *connState {
	return &connState{manager: manager, sess: sess, log: log}
}

// handleCommand applies one slash-command line and reports whether the
// session asked to quit. Malformed commands get a usage line back on the
// same connection; they never drop it.
func (cs *connState) handleCommand(line string) (quit bool) {
	cmd, err := parseCommand(line)
	if err != nil {
		cs.log.Debug("rejected command", zap.String("line", line), zap.Error(err))
		cs.sess.Send(usageLine)
		return false
	}

	switch cmd.name {
	case cmdQuit:
		return true
	case cmdLogin:
		cs.login(cmd)
	}
	return false
}

// login resolves or creates the target conversation, joins it, and
// replays up to historyCount recent messages after the confirmation line.
func (cs *connState) login(cmd command) {
	var conv *chat.Conversation
	if cmd.kind == chat.Private {
		conv = cs.manager.GetOrCreatePrivate(cmd.user, cmd.target)
	} else {
		conv = cs.manager.GetOrCreateRoom(cmd.target)
	}

	if err := cs.manager.Join(cmd.user, conv, cs.sess); err != nil {
		if errors.Is(err, chat.ErrMembershipFull) {
			cs.sess.Send(privateFull)
		} else {
			cs.sess.Send(usageLine)
		}
		return
	}

	// A re-login moves this session; detach whatever it was before so
	// the old identity or room does not keep receiving fan-out.
	if cs.userID != "" && (cs.userID != cmd.user || cs.convID != conv.ID()) {
		if cs.userID != cmd.user {
			cs.manager.Leave(cs.userID, cs.convID, cs.sess)
		} else if old := cs.manager.Lookup(cs.convID); old != nil {
			old.RemoveMember(cs.userID)
		}
	}

	cs.userID = cmd.user
	cs.convID = conv.ID()

	cs.sess.Send("Joined room " + conv.ID())
	for _, msg := range conv.Recent(cmd.historyCount) {
		cs.sess.Send(msg.Render())
	}
}

// handleChat routes one bare chat line to the current conversation, or
// nudges the client to join first.
func (cs *connState) handleChat(line string) {
	if cs.convID == "" {
		cs.sess.Send(joinFirstLine)
		return
	}
	cs.manager.RouteMessage(line, cs.userID, cs.convID)
}

// teardown detaches the session from the directory and its current
// conversation. Idempotent; called on every disconnect path.
func (cs *connState) teardown() {
	if cs.userID == "" {
		return
	}
	cs.manager.Leave(cs.userID, cs.convID, cs.sess)
	cs.userID = ""
	cs.convID = ""
}
