package ircd

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/cyko1218/irc"
)

// session is the server side of one connected client.
//
// A session starts in the connected state under a unique placeholder
// identity, becomes active when a NICK claim succeeds, and transitions to
// closed on QUIT, any read failure, or server shutdown. The closed
// transition runs registry cleanup exactly once.
type session struct {
	srv        *Server
	conn       io.ReadWriteCloser
	remoteAddr string
	limiter    *rate.Limiter

	// wmu serializes writes to conn so broadcast lines from different
	// rooms never interleave mid-line.
	wmu sync.Mutex

	// mu guards nick and rooms.
	mu    sync.Mutex
	nick  string
	rooms map[string]*room

	closeOnce sync.Once
}

func newSession(srv *Server, conn io.ReadWriteCloser, remoteAddr string) *session {
	return &session{
		srv:        srv,
		conn:       conn,
		remoteAddr: remoteAddr,
		limiter:    rate.NewLimiter(srv.cfg.MessageRate, srv.cfg.MessageBurst),
		nick:       guestNick(),
		rooms:      make(map[string]*room),
	}
}

// guestNick generates the placeholder identity assigned on accept.
// Placeholders keep unauthenticated sessions addressable so the nick
// registry invariant holds from accept onward.
func guestNick() string {
	return "guest-" + uuid.NewString()[:8]
}

// validNick reports whether nick may be registered. Identities travel in the
// space-delimited part of the wire format, so whitespace is forbidden, and a
// leading '#', ':' or '@' would collide with the room, trailing, and name-list
// operator markers.
func validNick(nick string) bool {
	if nick == "" || strings.ContainsAny(nick, " \t") {
		return false
	}
	switch nick[0] {
	case '#', ':', '@':
		return false
	}
	return true
}

// validRoomName reports whether name may be created or joined.
func validRoomName(name string) bool {
	return irc.IsRoom(name) && len(name) > 1 && !strings.ContainsAny(name, " \t")
}

// run owns the session's read loop. Each line is parsed and dispatched to
// the corresponding registry or room operation; every response is written
// back over the same connection. run returns when the connection closes.
func (s *session) run() {
	defer s.close("connection closed")

	s.reply(irc.RplWelcome, nil, "Welcome to "+s.srv.cfg.Name)

	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if !s.limiter.Allow() {
			s.send(serverMessage(s.srv.cfg.Name, irc.CmdNotice, irc.Params{s.Nick()}, "flood detected, message dropped"))
			continue
		}
		m := new(irc.Message)
		m.IncludePrefix()
		if err := m.UnmarshalText(line); err != nil {
			s.reply(irc.RplErrUnknownCommand, irc.Params{"*"}, "Unknown command")
			continue
		}
		if quit := s.dispatch(m); quit {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.srv.logf("session %s: read: %v", s.remoteAddr, err)
	}
}

// dispatch routes one parsed command. It reports whether the session
// should terminate.
func (s *session) dispatch(m *irc.Message) (quit bool) {
	cmd := irc.Command(strings.ToUpper(m.Command.String()))
	switch cmd {
	case irc.CmdNick:
		s.handleNick(m)
	case irc.CmdJoin:
		s.handleJoin(m)
	case irc.CmdPart:
		s.handlePart(m)
	case irc.CmdPrivmsg:
		s.handleRelay(m, false)
	case irc.CmdNotice:
		s.handleRelay(m, true)
	case irc.CmdTopic:
		s.handleTopic(m)
	case irc.CmdNames:
		s.handleNames(m)
	case irc.CmdList:
		s.handleList()
	case irc.CmdMode:
		s.handleMode(m)
	case irc.CmdKick:
		s.handleKick(m)
	case irc.CmdBan:
		s.handleBan(m)
	case irc.CmdUnban:
		s.handleUnban(m)
	case irc.CmdPing:
		s.handlePing(m)
	case irc.CmdQuit:
		reason := m.Text
		if reason == "" {
			reason = "Client quit"
		}
		s.close(reason)
		return true
	default:
		s.reply(irc.RplErrUnknownCommand, irc.Params{cmd.String()}, "Unknown command")
	}
	return false
}

func (s *session) handleNick(m *irc.Message) {
	next := m.Params.Get(1)
	if next == "" {
		next = m.Text
	}
	if next == "" {
		s.reply(irc.RplErrNeedMoreParams, irc.Params{irc.CmdNick.String()}, "Not enough parameters")
		return
	}
	// The rejected name is not echoed in the params: it may contain the
	// very characters the reply format reserves.
	if !validNick(next) {
		s.reply(irc.RplErrErroneousNick, nil, "Erroneous nickname")
		return
	}
	old := s.Nick()
	if next == old {
		s.reply(irc.RplLoginOK, nil, "Login successful")
		return
	}
	if err := s.srv.rename(s, old, next); err != nil {
		s.reply(irc.RplErrNicknameInUse, irc.Params{next}, "Nickname is already in use")
		return
	}
	s.send(serverMessage(s.srv.cfg.Name, irc.RplLoginOK, irc.Params{next}, "Login successful"))

	// announce the rename to every room the session is in
	notice := irc.NewMessage(irc.CmdNick)
	notice.Text = next
	userMessage(old, notice)
	for _, r := range s.roomList() {
		r.Announce(notice)
	}
}

func (s *session) handleJoin(m *irc.Message) {
	name := m.Params.Get(1)
	if name == "" {
		name = m.Text
	}
	if name == "" {
		s.reply(irc.RplErrNeedMoreParams, irc.Params{irc.CmdJoin.String()}, "Not enough parameters")
		return
	}
	if !validRoomName(name) {
		s.reply(irc.RplErrNoSuchChannel, nil, "No such channel")
		return
	}
	key := m.Params.Get(2)

	_, err := s.srv.joinRoom(s, name, key)
	switch err {
	case nil:
	case ErrBanned:
		s.reply(irc.RplErrBannedFromChan, irc.Params{name}, "Cannot join channel (+b)")
	case ErrBadKey:
		s.reply(irc.RplErrBadChannelKey, irc.Params{name}, "Cannot join channel (+k)")
	case ErrAlreadyMember:
		s.reply(irc.RplErrUserOnChannel, irc.Params{name}, "You are already in the channel")
	case ErrRoomFull:
		s.reply(irc.RplErrChannelIsFull, irc.Params{name}, "Cannot join channel (+l)")
	default:
		s.srv.logf("session %s: join %s: %v", s.remoteAddr, name, err)
	}
}

func (s *session) handlePart(m *irc.Message) {
	name := m.Params.Get(1)
	if name == "" {
		s.reply(irc.RplErrNeedMoreParams, irc.Params{irc.CmdPart.String()}, "Not enough parameters")
		return
	}
	r := s.getRoom(name)
	if r == nil {
		s.reply(irc.RplErrNoSuchChannel, irc.Params{name}, "No such channel")
		return
	}
	empty, err := r.Leave(s)
	s.detachRoom(name)
	if err != nil {
		s.reply(irc.RplErrNoSuchChannel, irc.Params{name}, "No such channel")
		return
	}
	if empty {
		s.srv.destroyRoomIfEmpty(r)
	}
}

// handleRelay delivers a PRIVMSG or NOTICE to a room or a single nickname.
// The sender always receives its own echo.
func (s *session) handleRelay(m *irc.Message, asNotice bool) {
	cmd := irc.CmdPrivmsg
	if asNotice {
		cmd = irc.CmdNotice
	}
	target := m.Params.Get(1)
	if target == "" || m.Text == "" {
		s.reply(irc.RplErrNeedMoreParams, irc.Params{cmd.String()}, "Not enough parameters")
		return
	}

	if irc.IsRoom(target) {
		r, err := s.srv.lookupRoom(target)
		if err != nil {
			s.reply(irc.RplErrNoSuchChannel, irc.Params{target}, "No such channel")
			return
		}
		if asNotice {
			err = r.Notice(s, m.Text)
		} else {
			err = r.Privmsg(s, m.Text)
		}
		if err == ErrNotMember {
			s.reply(irc.RplErrCannotSendToChan, irc.Params{target}, "Cannot send to channel")
		} else if err != nil {
			s.reply(irc.RplErrNoSuchChannel, irc.Params{target}, "No such channel")
		}
		return
	}

	peer, err := s.srv.lookupNick(target)
	if err != nil {
		s.reply(irc.RplErrNoSuchNick, irc.Params{target}, "No such nick/channel")
		return
	}
	out := irc.Msg(target, m.Text)
	if asNotice {
		out = irc.Notice(target, m.Text)
	}
	userMessage(s.Nick(), out)
	peer.send(out)
	if peer != s {
		s.send(out)
	}
}

func (s *session) handleTopic(m *irc.Message) {
	name := m.Params.Get(1)
	if name == "" {
		s.reply(irc.RplErrNeedMoreParams, irc.Params{irc.CmdTopic.String()}, "Not enough parameters")
		return
	}
	r, err := s.srv.lookupRoom(name)
	if err != nil {
		s.reply(irc.RplErrNoSuchChannel, irc.Params{name}, "No such channel")
		return
	}
	if m.Text == "" {
		r.SendTopic(s)
		return
	}
	if err := r.SetTopic(s, m.Text); err != nil {
		s.reply(irc.RplErrChanOPrivsNeeded, irc.Params{name}, "You're not channel operator")
	}
}

func (s *session) handleNames(m *irc.Message) {
	name := m.Params.Get(1)
	if name == "" {
		s.reply(irc.RplErrNeedMoreParams, irc.Params{irc.CmdNames.String()}, "Not enough parameters")
		return
	}
	r, err := s.srv.lookupRoom(name)
	if err != nil {
		s.reply(irc.RplErrNoSuchChannel, irc.Params{name}, "No such channel")
		return
	}
	r.SendNames(s)
}

func (s *session) handleList() {
	s.reply(irc.RplListStart, irc.Params{"Channel"}, "Users Name")
	for _, info := range s.srv.roomInfos() {
		s.reply(irc.RplList, irc.Params{info.name, strconv.Itoa(info.members)}, info.topic)
	}
	s.reply(irc.RplListEnd, nil, "End of /LIST")
}

func (s *session) handleMode(m *irc.Message) {
	name := m.Params.Get(1)
	flag := m.Params.Get(2)
	if name == "" || flag == "" {
		s.reply(irc.RplErrNeedMoreParams, irc.Params{irc.CmdMode.String()}, "Not enough parameters")
		return
	}
	r, err := s.srv.lookupRoom(name)
	if err != nil {
		s.reply(irc.RplErrNoSuchChannel, irc.Params{name}, "No such channel")
		return
	}
	switch flag {
	case "+k":
		key := m.Params.Get(3)
		if key == "" {
			s.reply(irc.RplErrNeedMoreParams, irc.Params{irc.CmdMode.String()}, "Not enough parameters")
			return
		}
		err = r.SetKey(s, key)
	case "-k":
		err = r.SetKey(s, "")
	default:
		s.reply(irc.RplErrUnknownMode, irc.Params{flag}, "Unknown mode flag")
		return
	}
	if err != nil {
		s.reply(irc.RplErrChanOPrivsNeeded, irc.Params{name}, "You're not channel operator")
	}
}

func (s *session) handleKick(m *irc.Message) {
	name := m.Params.Get(1)
	target := m.Params.Get(2)
	if name == "" || target == "" {
		s.reply(irc.RplErrNeedMoreParams, irc.Params{irc.CmdKick.String()}, "Not enough parameters")
		return
	}
	r, err := s.srv.lookupRoom(name)
	if err != nil {
		s.reply(irc.RplErrNoSuchChannel, irc.Params{name}, "No such channel")
		return
	}
	reason := m.Text
	if reason == "" {
		reason = "kicked"
	}
	empty, err := r.Kick(s, target, reason)
	switch err {
	case nil:
		if empty {
			s.srv.destroyRoomIfEmpty(r)
		}
	case ErrNotOperator:
		s.reply(irc.RplErrChanOPrivsNeeded, irc.Params{name}, "You're not channel operator")
	case ErrTargetIsOperator:
		s.reply(irc.RplErrChanOPrivsNeeded, irc.Params{name}, "The room operator cannot be kicked")
	case ErrNotMember:
		s.reply(irc.RplErrNoSuchNick, irc.Params{target}, "No such nick/channel")
	}
}

func (s *session) handleBan(m *irc.Message) {
	name := m.Params.Get(1)
	target := m.Params.Get(2)
	if name == "" || target == "" {
		s.reply(irc.RplErrNeedMoreParams, irc.Params{irc.CmdBan.String()}, "Not enough parameters")
		return
	}
	r, err := s.srv.lookupRoom(name)
	if err != nil {
		s.reply(irc.RplErrNoSuchChannel, irc.Params{name}, "No such channel")
		return
	}
	switch err := r.Ban(s, target); err {
	case nil:
	case ErrNotOperator:
		s.reply(irc.RplErrChanOPrivsNeeded, irc.Params{name}, "You're not channel operator")
	case ErrTargetIsOperator:
		s.reply(irc.RplErrChanOPrivsNeeded, irc.Params{name}, "The room operator cannot be banned")
	case ErrAlreadyBanned:
		s.send(serverMessage(s.srv.cfg.Name, irc.CmdNotice, irc.Params{s.Nick()}, target+" is already banned from "+name))
	}
}

func (s *session) handleUnban(m *irc.Message) {
	name := m.Params.Get(1)
	target := m.Params.Get(2)
	if name == "" || target == "" {
		s.reply(irc.RplErrNeedMoreParams, irc.Params{irc.CmdUnban.String()}, "Not enough parameters")
		return
	}
	r, err := s.srv.lookupRoom(name)
	if err != nil {
		s.reply(irc.RplErrNoSuchChannel, irc.Params{name}, "No such channel")
		return
	}
	switch err := r.Unban(s, target); err {
	case nil:
	case ErrNotOperator:
		s.reply(irc.RplErrChanOPrivsNeeded, irc.Params{name}, "You're not channel operator")
	case ErrNotBanned:
		s.send(serverMessage(s.srv.cfg.Name, irc.CmdNotice, irc.Params{s.Nick()}, target+" is not banned from "+name))
	}
}

func (s *session) handlePing(m *irc.Message) {
	token := m.Text
	if token == "" {
		token = m.Params.Get(1)
	}
	s.send(serverMessage(s.srv.cfg.Name, irc.CmdPong, nil, token))
}

// reply sends a numeric reply in the standard shape
// ":server <code> <nick> <params> :<text>".
func (s *session) reply(code irc.Command, params irc.Params, text string) {
	p := append(irc.Params{s.Nick()}, params...)
	s.send(serverMessage(s.srv.cfg.Name, code, p, text))
}

// send marshals m and writes it to the connection. Write failures are
// logged and otherwise ignored: a dead member never aborts a broadcast,
// and its own read loop will run the cleanup.
func (s *session) send(m *irc.Message) {
	b, err := m.MarshalText()
	if err != nil {
		s.srv.logf("session %s: marshal: %v", s.remoteAddr, err)
	}
	if len(b) == 0 {
		return
	}
	s.wmu.Lock()
	_, err = s.conn.Write(b)
	s.wmu.Unlock()
	if err != nil {
		s.srv.logf("session %s: write: %v", s.remoteAddr, err)
	}
}

// close transitions the session to its terminal state: registry cleanup
// runs exactly once and the connection is released, regardless of which
// side initiated the close.
func (s *session) close(reason string) {
	s.closeOnce.Do(func() {
		s.srv.removeClient(s, reason)
		_ = s.conn.Close()
	})
}

func (s *session) Nick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nick
}

func (s *session) setNick(nick string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nick = nick
}

func (s *session) attachRoom(name string, r *room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[name] = r
}

func (s *session) detachRoom(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, name)
}

func (s *session) getRoom(name string) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[name]
}

func (s *session) roomList() []*room {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]*room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}
