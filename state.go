package irc

import (
	"sort"
	"strings"
	"sync"
)

// RoomState is a snapshot of what the client knows about one room.
// It is rebuilt from server pushes (name replies, topic replies, joins,
// parts, kicks, mode changes) and may briefly lag behind the server.
type RoomState struct {
	Name        string
	Topic       string
	Admin       string
	Users       []string
	HasPassword bool
	Banned      []string
}

// A StateTracker maintains a local mirror of the rooms the client is in.
//
// Attach it to a client with its Middleware method:
//
//	tracker := irc.NewStateTracker(client)
//	router.Use(tracker.Middleware)
//
// The tracker updates its mirror before the wrapped handler runs, so handlers
// always observe state that already reflects the triggering message.
type StateTracker struct {
	client nickTracker

	mu    sync.Mutex
	rooms map[string]*RoomState
	subs  []func(room string)
}

func NewStateTracker(client nickTracker) *StateTracker {
	return &StateTracker{
		client: client,
		rooms:  make(map[string]*RoomState),
	}
}

// RoomState returns a copy of the tracked state for room and whether the room is known.
func (t *StateTracker) RoomState(room string) (RoomState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.rooms[room]
	if !ok {
		return RoomState{}, false
	}
	return st.copy(), true
}

// Rooms returns the names of all rooms the client is currently tracking, sorted.
func (t *StateTracker) Rooms() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.rooms))
	for name := range t.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscribe registers f to be called with the room name whenever that room's
// tracked state changes. Callbacks run synchronously from the client's dispatch
// loop, after the tracker lock has been released.
func (t *StateTracker) Subscribe(f func(room string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, f)
}

// Reset discards all tracked state, for reuse across reconnects.
func (t *StateTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rooms = make(map[string]*RoomState)
}

// Middleware updates the mirror from m before calling the next handler.
func (t *StateTracker) Middleware(next Handler) Handler {
	return HandlerFunc(func(mw MessageWriter, m *Message) {
		if room, changed := t.update(mw, m); changed {
			t.notify(room)
		}
		next.SpeakIRC(mw, m)
	})
}

func (t *StateTracker) notify(room string) {
	t.mu.Lock()
	subs := make([]func(string), len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()
	for _, f := range subs {
		f(room)
	}
}

// update applies m to the mirror and reports which room changed, if any.
func (t *StateTracker) update(mw MessageWriter, m *Message) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	me := t.client.Nick()

	switch m.Command {

	// ":server 332 <nick> <room> :<topic>"
	case RplTopic:
		st := t.room(m.Params.Get(2))
		if st == nil {
			return "", false
		}
		st.Topic = m.Text
		return st.Name, true

	// ":server 331 <nick> <room> :No topic is set"
	case RplNoTopic:
		st := t.room(m.Params.Get(2))
		if st == nil {
			return "", false
		}
		st.Topic = ""
		return st.Name, true

	// ":server 353 <nick> = <room> :@admin user1 user2"
	case RplNamReply:
		st := t.room(m.Params.Get(3))
		if st == nil {
			return "", false
		}
		st.Users, st.Admin = parseNameList(m.Text)
		return st.Name, true

	// ":nick JOIN #room"
	case CmdJoin:
		room, err := m.Chan()
		if err != nil {
			return "", false
		}
		if m.Source.Nick.Is(me.String()) {
			// our own join: start tracking and resync from the server.
			// the topic is requested first so that by the time the
			// end-of-names marker arrives the mirror is complete.
			t.rooms[room] = &RoomState{Name: room}
			mw.WriteMessage(TopicQuery(room))
			mw.WriteMessage(Names(room))
			return room, true
		}
		st := t.rooms[room]
		if st == nil {
			return "", false
		}
		st.addUser(m.Source.Nick.String())
		return room, true

	// ":nick PART #room"
	case CmdPart:
		room, err := m.Chan()
		if err != nil {
			return "", false
		}
		if m.Source.Nick.Is(me.String()) {
			delete(t.rooms, room)
			return room, true
		}
		st := t.rooms[room]
		if st == nil {
			return "", false
		}
		st.removeUser(m.Source.Nick.String())
		return room, true

	// ":executor KICK #room <target> :<reason>"
	case CmdKick:
		room := m.Params.Get(1)
		target := m.Params.Get(2)
		if me.Is(target) {
			delete(t.rooms, room)
			return room, true
		}
		st := t.rooms[room]
		if st == nil {
			return "", false
		}
		st.removeUser(target)
		return room, true

	// ":nick QUIT :<reason>" is broadcast to every room the quitter shared with us,
	// so remove them everywhere.
	case CmdQuit:
		nick := m.Source.Nick.String()
		var changed string
		for _, st := range t.rooms {
			if st.removeUser(nick) {
				changed = st.Name
			}
		}
		return changed, changed != ""

	// ":old NICK :new"
	case CmdNick:
		oldNick := m.Source.Nick.String()
		newNick := m.Text
		if newNick == "" {
			newNick = m.Params.Get(1)
		}
		var changed string
		for _, st := range t.rooms {
			if st.renameUser(oldNick, newNick) {
				changed = st.Name
			}
		}
		return changed, changed != ""

	// ":source MODE #room <flag> [arg]"
	case CmdMode:
		st := t.rooms[m.Params.Get(1)]
		if st == nil {
			return "", false
		}
		return st.Name, st.applyMode(m.Params.Get(2), m.Params.Get(3))
	}

	return "", false
}

// room looks up a tracked room, tolerating replies for rooms we already left.
func (t *StateTracker) room(name string) *RoomState {
	if name == "" {
		return nil
	}
	return t.rooms[name]
}

func (st *RoomState) copy() RoomState {
	out := *st
	out.Users = append([]string(nil), st.Users...)
	out.Banned = append([]string(nil), st.Banned...)
	return out
}

func (st *RoomState) addUser(nick string) {
	for _, u := range st.Users {
		if u == nick {
			return
		}
	}
	st.Users = append(st.Users, nick)
}

func (st *RoomState) removeUser(nick string) bool {
	for i, u := range st.Users {
		if u == nick {
			st.Users = append(st.Users[:i], st.Users[i+1:]...)
			if st.Admin == nick {
				st.Admin = ""
			}
			return true
		}
	}
	return false
}

func (st *RoomState) renameUser(oldNick, newNick string) bool {
	for i, u := range st.Users {
		if u == oldNick {
			st.Users[i] = newNick
			if st.Admin == oldNick {
				st.Admin = newNick
			}
			return true
		}
	}
	return false
}

// applyMode folds a room mode notice into the state.
// Flags follow the wire format: +o/-o for admin, +k/-k for password, +b/-b for bans.
func (st *RoomState) applyMode(flag, arg string) bool {
	switch flag {
	case "+o":
		st.Admin = arg
	case "-o":
		if st.Admin == arg {
			st.Admin = ""
		}
	case "+k":
		st.HasPassword = true
	case "-k":
		st.HasPassword = false
	case "+b":
		for _, b := range st.Banned {
			if b == arg {
				return true
			}
		}
		st.Banned = append(st.Banned, arg)
	case "-b":
		for i, b := range st.Banned {
			if b == arg {
				st.Banned = append(st.Banned[:i], st.Banned[i+1:]...)
				break
			}
		}
	default:
		return false
	}
	return true
}

// parseNameList splits the trailing field of a name reply into member nicknames.
// The room admin is marked with a leading "@".
func parseNameList(list string) (users []string, admin string) {
	for _, f := range strings.Fields(list) {
		if strings.HasPrefix(f, "@") {
			f = strings.TrimPrefix(f, "@")
			admin = f
		}
		if f != "" {
			users = append(users, f)
		}
	}
	return users, admin
}
