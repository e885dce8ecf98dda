package ircd

import (
	"sort"
	"sync"

	"github.com/cyko1218/irc"
)

// room owns one room's membership set, admin, ban set, topic, and optional
// password. Every mutation happens under the room's own mutex so that
// concurrent joins, parts, and kicks on the same room never interleave into
// an inconsistent state.
//
// Rooms format and deliver their own notices. Delivery to each member is
// best-effort: a failed write never aborts the rest of a broadcast, because
// the failing member's own read loop will detect the dead connection and
// trigger cleanup.
type room struct {
	name     string
	server   string
	capacity int

	mu      sync.Mutex
	topic   string
	key     string
	members map[*session]struct{}
	admin   *session
	banned  map[string]struct{}

	// closed marks a room that the registry has destroyed. A join that
	// raced with the destruction observes closed and retries against a
	// freshly created room.
	closed bool
}

func newRoom(name, server string, capacity int) *room {
	return &room{
		name:     name,
		server:   server,
		capacity: capacity,
		topic:    "Welcome to " + name,
		members:  make(map[*session]struct{}),
		banned:   make(map[string]struct{}),
	}
}

// Join adds s to the room.
// The first member of a freshly created room becomes its admin.
// On success the joiner receives a snapshot (topic and marked name list)
// and everyone, the joiner included, receives the join notice.
func (r *room) Join(s *session, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errRoomClosed
	}
	nick := s.Nick()
	if _, ok := r.banned[nick]; ok {
		return ErrBanned
	}
	if r.key != "" && r.key != key {
		return ErrBadKey
	}
	if _, ok := r.members[s]; ok {
		return ErrAlreadyMember
	}
	if len(r.members) >= r.capacity {
		return ErrRoomFull
	}

	r.members[s] = struct{}{}
	if r.admin == nil {
		r.admin = s
	}
	// Attach under r.mu so a kick or ban landing right after the join
	// cannot detach before the session has recorded its membership.
	s.attachRoom(r.name, r)

	r.sendSnapshot(s)
	r.broadcast(userMessage(nick, irc.NewMessage(irc.CmdJoin, r.name)))
	return nil
}

// sendSnapshot sends the topic reply, the marked name list, and the
// end-of-names marker to one member. Callers must hold r.mu.
func (r *room) sendSnapshot(s *session) {
	nick := s.Nick()
	s.send(serverMessage(r.server, irc.RplTopic, irc.Params{nick, r.name}, r.topic))
	s.send(serverMessage(r.server, irc.RplNamReply, irc.Params{nick, "=", r.name}, r.nameList()))
	s.send(serverMessage(r.server, irc.RplEndOfNames, irc.Params{nick, r.name}, "End of /NAMES list"))
}

// Leave removes s from the room and broadcasts the part notice to every
// member, the leaver included. It reports whether the room emptied, in
// which case the registry destroys it.
func (r *room) Leave(s *session) (empty bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[s]; !ok {
		return false, ErrNotMember
	}
	r.broadcast(userMessage(s.Nick(), irc.NewMessage(irc.CmdPart, r.name)))
	r.remove(s)
	return len(r.members) == 0, nil
}

// Drop removes a disconnecting member, broadcasting a quit notice to the
// remaining members instead of a part notice. It reports whether the room
// emptied.
func (r *room) Drop(s *session, reason string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[s]; !ok {
		return false
	}
	r.remove(s)
	m := irc.NewMessage(irc.CmdQuit)
	m.Text = reason
	r.broadcast(userMessage(s.Nick(), m))
	return len(r.members) == 0
}

// Kick forcibly removes the member named target. Only the admin may kick,
// and the admin itself cannot be kicked.
func (r *room) Kick(executor *session, target, reason string) (empty bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.admin != executor {
		return false, ErrNotOperator
	}
	victim := r.findMember(target)
	if victim == nil {
		return false, ErrNotMember
	}
	if victim == r.admin {
		return false, ErrTargetIsOperator
	}
	r.kick(executor, victim, reason)
	return len(r.members) == 0, nil
}

// kick broadcasts the kick notice to every member, the target included,
// then removes the target. Callers must hold r.mu.
func (r *room) kick(executor, victim *session, reason string) {
	m := irc.NewMessage(irc.CmdKick, r.name, victim.Nick())
	m.Text = reason
	r.broadcast(userMessage(executor.Nick(), m))
	r.remove(victim)
	victim.detachRoom(r.name)
}

// Announce broadcasts a pre-formatted message to every member.
func (r *room) Announce(m *irc.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast(m)
}

// Ban adds target to the ban list and kicks them if currently a member.
// Banning a name that is already banned and not present fails with
// ErrAlreadyBanned.
func (r *room) Ban(executor *session, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.admin != executor {
		return ErrNotOperator
	}
	victim := r.findMember(target)
	if victim == r.admin && victim != nil {
		return ErrTargetIsOperator
	}
	if _, ok := r.banned[target]; ok && victim == nil {
		return ErrAlreadyBanned
	}
	r.banned[target] = struct{}{}
	r.broadcast(userMessage(executor.Nick(), irc.NewMessage(irc.CmdMode, r.name, "+b", target)))
	if victim != nil {
		r.kick(executor, victim, "banned")
	}
	return nil
}

// Unban removes target from the ban list.
func (r *room) Unban(executor *session, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.admin != executor {
		return ErrNotOperator
	}
	if _, ok := r.banned[target]; !ok {
		return ErrNotBanned
	}
	delete(r.banned, target)
	r.broadcast(userMessage(executor.Nick(), irc.NewMessage(irc.CmdMode, r.name, "-b", target)))
	return nil
}

// SetTopic replaces the room topic and announces it to every member.
func (r *room) SetTopic(executor *session, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.admin != executor {
		return ErrNotOperator
	}
	r.topic = topic
	for s := range r.members {
		s.send(serverMessage(r.server, irc.RplTopic, irc.Params{s.Nick(), r.name}, topic))
	}
	m := irc.NewMessage(irc.CmdTopic, r.name)
	m.Text = topic
	r.broadcast(userMessage(executor.Nick(), m))
	return nil
}

// SetKey sets or clears the room password and announces the mode change.
// An empty key clears the password.
func (r *room) SetKey(executor *session, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.admin != executor {
		return ErrNotOperator
	}
	r.key = key
	if key == "" {
		r.broadcast(userMessage(executor.Nick(), irc.NewMessage(irc.CmdMode, r.name, "-k")))
	} else {
		r.broadcast(userMessage(executor.Nick(), irc.NewMessage(irc.CmdMode, r.name, "+k", key)))
	}
	return nil
}

// Privmsg relays text from a member to every member, the sender included.
func (r *room) Privmsg(from *session, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[from]; !ok {
		return ErrNotMember
	}
	r.broadcast(userMessage(from.Nick(), irc.Msg(r.name, text)))
	return nil
}

// Notice relays a notice from a member to every member.
func (r *room) Notice(from *session, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[from]; !ok {
		return ErrNotMember
	}
	r.broadcast(userMessage(from.Nick(), irc.Notice(r.name, text)))
	return nil
}

// SendTopic answers a topic query from s.
func (r *room) SendTopic(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nick := s.Nick()
	if r.topic == "" {
		s.send(serverMessage(r.server, irc.RplNoTopic, irc.Params{nick, r.name}, "No topic is set"))
		return
	}
	s.send(serverMessage(r.server, irc.RplTopic, irc.Params{nick, r.name}, r.topic))
}

// SendNames answers a name-list query from s.
func (r *room) SendNames(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nick := s.Nick()
	s.send(serverMessage(r.server, irc.RplNamReply, irc.Params{nick, "=", r.name}, r.nameList()))
	s.send(serverMessage(r.server, irc.RplEndOfNames, irc.Params{nick, r.name}, "End of /NAMES list"))
}

// Info returns the room's name, member count, and topic for list replies.
func (r *room) Info() (name string, members int, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name, len(r.members), r.topic
}

// remove deletes s from the membership and reassigns the admin role to the
// member with the smallest nickname when the departing member held it.
// The handoff is announced with a "+o" mode notice. Callers must hold r.mu.
func (r *room) remove(s *session) {
	delete(r.members, s)
	if r.admin != s {
		return
	}
	r.admin = nil
	if len(r.members) == 0 {
		return
	}
	var next *session
	for m := range r.members {
		if next == nil || m.Nick() < next.Nick() {
			next = m
		}
	}
	r.admin = next
	r.broadcast(serverMessage(r.server, irc.CmdMode, irc.Params{r.name, "+o", next.Nick()}, ""))
}

// markClosedIfEmpty flags an empty room as destroyed so that a racing join
// retries against a fresh room. It reports whether the flag was set.
func (r *room) markClosedIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 {
		return false
	}
	r.closed = true
	return true
}

// findMember returns the member session holding nick, or nil. Callers must hold r.mu.
func (r *room) findMember(nick string) *session {
	for s := range r.members {
		if s.Nick() == nick {
			return s
		}
	}
	return nil
}

// nameList formats the membership as a space-delimited list with the admin
// first, marked with a leading "@". Remaining names are sorted so the list
// is stable. Callers must hold r.mu.
func (r *room) nameList() string {
	names := make([]string, 0, len(r.members))
	for s := range r.members {
		if s == r.admin {
			continue
		}
		names = append(names, s.Nick())
	}
	sort.Strings(names)
	if r.admin != nil {
		names = append([]string{"@" + r.admin.Nick()}, names...)
	}
	out := ""
	for i, n := range names {
		if i > 0 {
			out += " "
		}
		out += n
	}
	return out
}

// broadcast delivers m to every current member exactly once.
// Callers must hold r.mu.
func (r *room) broadcast(m *irc.Message) {
	for s := range r.members {
		s.send(m)
	}
}

// userMessage stamps m with a user prefix for relaying.
func userMessage(nick string, m *irc.Message) *irc.Message {
	m.Source = irc.Prefix{Nick: irc.Nickname(nick)}
	m.IncludePrefix()
	return m
}

// serverMessage builds a server-originated message such as a numeric reply.
func serverMessage(server string, cmd irc.Command, params irc.Params, text string) *irc.Message {
	m := &irc.Message{
		Source:  irc.Prefix{Host: server},
		Command: cmd,
		Params:  params,
		Text:    text,
	}
	m.IncludePrefix()
	return m
}
