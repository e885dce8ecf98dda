/*
Package ircd implements the chat server: the nickname and room registry,
the room state machine, and the per-connection session loop.

Basic usage:

	srv := ircd.NewServer(ircd.Config{Name: "chat.local"})
	l, err := net.Listen("tcp", ":6667")
	if err != nil {
		log.Fatal(err)
	}
	log.Fatal(srv.Serve(l))

Websocket clients can be served from an HTTP mux with WebsocketHandler.
*/
package ircd

import (
	"io"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/cyko1218/irc"
	"github.com/cyko1218/irc/ircws"
)

// Config holds the server's tunables. The zero value is usable.
type Config struct {

	// Name is the server name used as the prefix of server-originated
	// messages. Defaults to "chat.local".
	Name string

	// RoomCapacity is the maximum number of members per room. Defaults to 50.
	RoomCapacity int

	// MessageRate and MessageBurst configure the per-session inbound
	// flood limiter. Lines over the limit are answered with a notice and
	// dropped. Defaults: 10 lines/second with a burst of 20.
	MessageRate  rate.Limit
	MessageBurst int

	// Logger specifies an optional logger.
	// If nil, logging is done via the log package's standard logger.
	Logger *log.Logger
}

const (
	defaultName         = "chat.local"
	defaultRoomCapacity = 50
	defaultMessageRate  = rate.Limit(10)
	defaultMessageBurst = 20
)

// Server coordinates nicknames, rooms, and sessions across concurrently
// connected clients.
//
// The registry maps are guarded by one RWMutex; each room additionally
// guards its own state, so room operations from different sessions only
// contend when they touch the same room.
type Server struct {
	cfg Config

	mu        sync.RWMutex
	nicks     map[string]*session
	rooms     map[string]*room
	sessions  map[*session]struct{}
	listeners map[net.Listener]struct{}
	closed    bool
}

func NewServer(cfg Config) *Server {
	if cfg.Name == "" {
		cfg.Name = defaultName
	}
	if cfg.RoomCapacity == 0 {
		cfg.RoomCapacity = defaultRoomCapacity
	}
	if cfg.MessageRate == 0 {
		cfg.MessageRate = defaultMessageRate
	}
	if cfg.MessageBurst == 0 {
		cfg.MessageBurst = defaultMessageBurst
	}
	return &Server{
		cfg:       cfg,
		nicks:     make(map[string]*session),
		rooms:     make(map[string]*room),
		sessions:  make(map[*session]struct{}),
		listeners: make(map[net.Listener]struct{}),
	}
}

// Serve accepts connections on l until the listener fails or the server is
// shut down. Each accepted connection runs its session loop on its own
// goroutine. Serve returns ErrServerClosed after Shutdown.
func (srv *Server) Serve(l net.Listener) error {
	if !srv.addListener(l) {
		return ErrServerClosed
	}
	defer srv.removeListener(l)

	for {
		conn, err := l.Accept()
		if err != nil {
			if srv.closing() {
				return ErrServerClosed
			}
			return err
		}
		go srv.ServeConn(conn, conn.RemoteAddr().String())
	}
}

// WebsocketHandler returns an http.Handler that upgrades requests to
// websocket connections and runs the same session loop over them.
// One websocket text frame carries one or more protocol lines.
func (srv *Server) WebsocketHandler() http.Handler {
	upgrader := websocket.Upgrader{
		// The protocol has its own nickname registration; cross-origin
		// browser clients are allowed to connect.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := ircws.Upgrade(upgrader, w, req)
		if err != nil {
			srv.logf("websocket upgrade: %v", err)
			return
		}
		srv.ServeConn(conn, req.RemoteAddr)
	})
}

// ServeConn runs the session loop for one established connection.
// It returns when the connection is closed.
func (srv *Server) ServeConn(conn io.ReadWriteCloser, remoteAddr string) {
	s := newSession(srv, conn, remoteAddr)
	if !srv.addSession(s) {
		_ = conn.Close()
		return
	}
	s.run()
}

// Shutdown closes the listeners and terminates every session after sending
// it an ERROR notice. In-flight room operations finish normally.
func (srv *Server) Shutdown() {
	srv.mu.Lock()
	if srv.closed {
		srv.mu.Unlock()
		return
	}
	srv.closed = true
	listeners := make([]net.Listener, 0, len(srv.listeners))
	for l := range srv.listeners {
		listeners = append(listeners, l)
	}
	sessions := make([]*session, 0, len(srv.sessions))
	for s := range srv.sessions {
		sessions = append(sessions, s)
	}
	srv.mu.Unlock()

	for _, l := range listeners {
		_ = l.Close()
	}
	for _, s := range sessions {
		s.send(serverMessage(srv.cfg.Name, irc.CmdError, nil, "server shutting down"))
		s.close("server shutting down")
	}
}

func (srv *Server) addListener(l net.Listener) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.closed {
		return false
	}
	srv.listeners[l] = struct{}{}
	return true
}

func (srv *Server) removeListener(l net.Listener) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.listeners, l)
}

func (srv *Server) addSession(s *session) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.closed {
		return false
	}
	srv.sessions[s] = struct{}{}
	srv.nicks[s.Nick()] = s
	return true
}

func (srv *Server) closing() bool {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	return srv.closed
}

// rename atomically moves the session's registry entry from old to next and
// updates the session's own nick record in the same critical section, so a
// concurrent removeClient always sees the registry and the session agree.
// No concurrent lookup can observe a moment where next is claimed by two
// sessions or where the session holds no name at all.
func (srv *Server) rename(s *session, old, next string) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if _, taken := srv.nicks[next]; taken {
		return ErrNickInUse
	}
	delete(srv.nicks, old)
	srv.nicks[next] = s
	s.setNick(next)
	return nil
}

// lookupNick returns the session registered under nick.
func (srv *Server) lookupNick(nick string) (*session, error) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	s, ok := srv.nicks[nick]
	if !ok {
		return nil, ErrNoSuchNick
	}
	return s, nil
}

// lookupRoom returns an existing room.
func (srv *Server) lookupRoom(name string) (*room, error) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	r, ok := srv.rooms[name]
	if !ok {
		return nil, ErrNoSuchRoom
	}
	return r, nil
}

// joinRoom adds s to the named room, creating the room on first join.
// A join that races with the room's destruction retries against a fresh room.
func (srv *Server) joinRoom(s *session, name, key string) (*room, error) {
	for {
		r := srv.getOrCreateRoom(name)
		err := r.Join(s, key)
		if err == errRoomClosed {
			continue
		}
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

func (srv *Server) getOrCreateRoom(name string) *room {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if r, ok := srv.rooms[name]; ok {
		return r
	}
	r := newRoom(name, srv.cfg.Name, srv.cfg.RoomCapacity)
	srv.rooms[name] = r
	return r
}

// destroyRoomIfEmpty removes r from the registry when its membership has
// emptied. The room is flagged closed under its own lock first, so a join
// racing with the destruction retries instead of landing in a dead room.
func (srv *Server) destroyRoomIfEmpty(r *room) {
	if !r.markClosedIfEmpty() {
		return
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.rooms[r.name] == r {
		delete(srv.rooms, r.name)
	}
}

// roomInfos snapshots the room directory for LIST replies.
func (srv *Server) roomInfos() []roomInfo {
	srv.mu.RLock()
	rooms := make([]*room, 0, len(srv.rooms))
	for _, r := range srv.rooms {
		rooms = append(rooms, r)
	}
	srv.mu.RUnlock()

	infos := make([]roomInfo, 0, len(rooms))
	for _, r := range rooms {
		name, members, topic := r.Info()
		infos = append(infos, roomInfo{name: name, members: members, topic: topic})
	}
	return infos
}

type roomInfo struct {
	name    string
	members int
	topic   string
}

// removeClient detaches a closed session: its nickname registration, its
// membership in every room (broadcasting the quit notice), and its entry in
// the session set. It runs exactly once per session, from session.close.
func (srv *Server) removeClient(s *session, reason string) {
	srv.mu.Lock()
	if srv.nicks[s.Nick()] == s {
		delete(srv.nicks, s.Nick())
	}
	delete(srv.sessions, s)
	srv.mu.Unlock()

	for _, r := range s.roomList() {
		if r.Drop(s, reason) {
			srv.destroyRoomIfEmpty(r)
		}
	}
}

func (srv *Server) logf(format string, args ...interface{}) {
	if srv.cfg.Logger != nil {
		srv.cfg.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
