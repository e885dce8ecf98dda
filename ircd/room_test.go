package ircd

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"golang.org/x/time/rate"
)

// recordConn collects everything a session writes so tests can assert on
// the broadcast lines. Read blocks forever; room tests never run the
// session read loop.
type recordConn struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed chan struct{}
}

func newRecordConn() *recordConn {
	return &recordConn{closed: make(chan struct{})}
}

func (c *recordConn) Read(p []byte) (int, error) {
	<-c.closed
	return 0, fmt.Errorf("closed")
}

func (c *recordConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *recordConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func (c *recordConn) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(c.buf.Bytes()))
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	return out
}

func (c *recordConn) contains(t *testing.T, want string) {
	t.Helper()
	for _, l := range c.lines() {
		if l == want {
			return
		}
	}
	t.Errorf("expected line %q in output; got:\n%s", want, strings.Join(c.lines(), "\n"))
}

func testServer() *Server {
	return NewServer(Config{Name: "chat.test", MessageRate: rate.Inf})
}

func testSession(srv *Server, nick string) (*session, *recordConn) {
	conn := newRecordConn()
	s := newSession(srv, conn, "pipe")
	s.setNick(nick)
	return s, conn
}

func TestRoomFirstJoinerIsAdmin(t *testing.T) {
	srv := testServer()
	r := newRoom("#chat", srv.cfg.Name, srv.cfg.RoomCapacity)

	alice, aliceConn := testSession(srv, "alice")
	bob, _ := testSession(srv, "bob")

	if err := r.Join(alice, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if r.admin != alice {
		t.Error("the first joiner should be admin")
	}
	if err := r.Join(bob, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if r.admin != alice {
		t.Error("a later joiner must never become admin")
	}

	// the joiner receives the snapshot with the default topic and the
	// marked name list
	aliceConn.contains(t, ":chat.test 332 alice #chat :Welcome to #chat")
	aliceConn.contains(t, ":chat.test 353 alice = #chat :@alice")
	aliceConn.contains(t, ":chat.test 366 alice #chat :End of /NAMES list")
	aliceConn.contains(t, ":alice JOIN #chat")
	// and the join notice for later members
	aliceConn.contains(t, ":bob JOIN #chat")
}

func TestRoomAdminHandoff(t *testing.T) {
	srv := testServer()
	r := newRoom("#chat", srv.cfg.Name, srv.cfg.RoomCapacity)

	alice, _ := testSession(srv, "alice")
	bob, bobConn := testSession(srv, "bob")
	carol, _ := testSession(srv, "carol")

	for _, s := range []*session{alice, bob, carol} {
		if err := r.Join(s, ""); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	empty, err := r.Leave(alice)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if empty {
		t.Error("the room is not empty")
	}
	if r.admin != bob {
		t.Errorf("admin should hand off to the smallest remaining nick; got %v", r.admin)
	}
	bobConn.contains(t, ":alice PART #chat")
	bobConn.contains(t, ":chat.test MODE #chat +o bob")
}

func TestRoomJoinAttachesMembership(t *testing.T) {
	srv := testServer()
	r := newRoom("#chat", srv.cfg.Name, srv.cfg.RoomCapacity)

	alice, _ := testSession(srv, "alice")
	bob, _ := testSession(srv, "bob")

	if err := r.Join(alice, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if alice.getRoom("#chat") != r {
		t.Fatal("the joiner must hold the room by the time Join returns")
	}

	// a kick right after the join must find and clear the attachment
	if err := r.Join(bob, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := r.Kick(alice, "bob", "kicked"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if bob.getRoom("#chat") != nil {
		t.Error("a kicked member must not keep the room attached")
	}
}

func TestRoomJoinErrors(t *testing.T) {
	srv := testServer()
	r := newRoom("#chat", srv.cfg.Name, 2)

	alice, _ := testSession(srv, "alice")
	bob, _ := testSession(srv, "bob")
	carol, _ := testSession(srv, "carol")
	mallory, _ := testSession(srv, "mallory")

	if err := r.Join(alice, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := r.Join(alice, ""); err != ErrAlreadyMember {
		t.Errorf("double join: got %v wanted %v", err, ErrAlreadyMember)
	}

	r.banned["mallory"] = struct{}{}
	if err := r.Join(mallory, ""); err != ErrBanned {
		t.Errorf("banned join: got %v wanted %v", err, ErrBanned)
	}
	if _, ok := r.members[mallory]; ok {
		t.Error("a failed join must not change membership")
	}

	if err := r.SetKey(alice, "hunter2"); err != nil {
		t.Fatalf("setkey: %v", err)
	}
	if err := r.Join(bob, "wrong"); err != ErrBadKey {
		t.Errorf("wrong key: got %v wanted %v", err, ErrBadKey)
	}
	if err := r.Join(bob, "hunter2"); err != nil {
		t.Fatalf("join with key: %v", err)
	}

	if err := r.Join(carol, "hunter2"); err != ErrRoomFull {
		t.Errorf("full room: got %v wanted %v", err, ErrRoomFull)
	}
	if len(r.members) != 2 {
		t.Errorf("membership should be unchanged after a rejected join; got %d", len(r.members))
	}
}

func TestRoomKickRequiresAdmin(t *testing.T) {
	srv := testServer()
	r := newRoom("#chat", srv.cfg.Name, srv.cfg.RoomCapacity)

	alice, _ := testSession(srv, "alice")
	bob, _ := testSession(srv, "bob")
	r.Join(alice, "")
	r.Join(bob, "")

	if _, err := r.Kick(bob, "alice", "no"); err != ErrNotOperator {
		t.Errorf("kick by non-admin: got %v wanted %v", err, ErrNotOperator)
	}
	if err := r.Ban(bob, "alice"); err != ErrNotOperator {
		t.Errorf("ban by non-admin: got %v wanted %v", err, ErrNotOperator)
	}
	if len(r.members) != 2 || len(r.banned) != 0 {
		t.Error("failed kick/ban must not change membership or bans")
	}

	if _, err := r.Kick(alice, "alice", "no"); err != ErrTargetIsOperator {
		t.Errorf("kicking the admin: got %v wanted %v", err, ErrTargetIsOperator)
	}
}

func TestRoomBan(t *testing.T) {
	srv := testServer()
	r := newRoom("#chat", srv.cfg.Name, srv.cfg.RoomCapacity)

	alice, _ := testSession(srv, "alice")
	bob, bobConn := testSession(srv, "bob")
	r.Join(alice, "")
	r.Join(bob, "")

	if err := r.Ban(alice, "bob"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if _, ok := r.members[bob]; ok {
		t.Error("banning a member must kick them")
	}
	if _, ok := r.banned["bob"]; !ok {
		t.Error("the ban list should contain bob")
	}
	bobConn.contains(t, ":alice MODE #chat +b bob")
	bobConn.contains(t, ":alice KICK #chat bob :banned")

	if err := r.Ban(alice, "bob"); err != ErrAlreadyBanned {
		t.Errorf("repeat ban: got %v wanted %v", err, ErrAlreadyBanned)
	}
	if err := r.Unban(alice, "bob"); err != nil {
		t.Fatalf("unban: %v", err)
	}
	if err := r.Unban(alice, "bob"); err != ErrNotBanned {
		t.Errorf("repeat unban: got %v wanted %v", err, ErrNotBanned)
	}
	if err := r.Join(bob, ""); err != nil {
		t.Errorf("an unbanned nick should be able to rejoin: %v", err)
	}
}

func TestRoomTopic(t *testing.T) {
	srv := testServer()
	r := newRoom("#chat", srv.cfg.Name, srv.cfg.RoomCapacity)

	alice, _ := testSession(srv, "alice")
	bob, bobConn := testSession(srv, "bob")
	r.Join(alice, "")
	r.Join(bob, "")

	if err := r.SetTopic(bob, "nope"); err != ErrNotOperator {
		t.Errorf("topic by non-admin: got %v wanted %v", err, ErrNotOperator)
	}
	if err := r.SetTopic(alice, "release day"); err != nil {
		t.Fatalf("settopic: %v", err)
	}
	if r.topic != "release day" {
		t.Errorf("topic: got %q", r.topic)
	}
	bobConn.contains(t, ":chat.test 332 bob #chat :release day")
	bobConn.contains(t, ":alice TOPIC #chat :release day")
}

func TestRoomPrivmsgRequiresMembership(t *testing.T) {
	srv := testServer()
	r := newRoom("#chat", srv.cfg.Name, srv.cfg.RoomCapacity)

	alice, aliceConn := testSession(srv, "alice")
	outsider, _ := testSession(srv, "outsider")
	r.Join(alice, "")

	if err := r.Privmsg(outsider, "hi"); err != ErrNotMember {
		t.Errorf("got %v wanted %v", err, ErrNotMember)
	}
	if err := r.Privmsg(alice, "hi"); err != nil {
		t.Fatalf("privmsg: %v", err)
	}
	// the sender receives its own echo
	aliceConn.contains(t, ":alice PRIVMSG #chat :hi")
}

func TestRoomConcurrentJoins(t *testing.T) {
	srv := testServer()
	r := newRoom("#chat", srv.cfg.Name, srv.cfg.RoomCapacity)

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		s, _ := testSession(srv, fmt.Sprintf("user%02d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Join(s, ""); err != nil {
				t.Errorf("join: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(r.members) != n {
		t.Errorf("expected %d members, got %d", n, len(r.members))
	}
	if r.admin == nil {
		t.Fatal("expected exactly one admin, got none")
	}
	if _, ok := r.members[r.admin]; !ok {
		t.Error("the admin must be a current member")
	}
}

func TestRoomNameList(t *testing.T) {
	srv := testServer()
	r := newRoom("#chat", srv.cfg.Name, srv.cfg.RoomCapacity)

	bob, _ := testSession(srv, "bob")
	alice, _ := testSession(srv, "alice")
	carol, _ := testSession(srv, "carol")
	r.Join(bob, "")
	r.Join(alice, "")
	r.Join(carol, "")

	r.mu.Lock()
	got := r.nameList()
	r.mu.Unlock()
	if got != "@bob alice carol" {
		t.Errorf("name list: got %q wanted %q", got, "@bob alice carol")
	}
}
