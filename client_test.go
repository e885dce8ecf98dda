package irc_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/cyko1218/irc"
	"github.com/cyko1218/irc/irctest"
)

func TestClient_ConnectAndRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	server := newServer()
	defer server.Close()

	client := &irc.Client{Nickname: "alice"}
	client.DialFn = func() (io.ReadWriteCloser, error) {
		return server, nil
		// return ircdebug.WriteTo(os.Stdout, server, "-> ", ""), nil
	}

	h := &irc.Router{}
	h.OnLogin(func(w irc.MessageWriter, m *irc.Message) {
		w.WriteMessage(irc.Join("#chat"))
	})
	h.OnJoin(func(w irc.MessageWriter, m *irc.Message) {
		w.WriteMessage(irc.Quit("bye"))
	}).MatchClient(client).MatchChan("#chat")

	err := client.ConnectAndRun(ctx, h)
	if err != nil {
		t.Errorf("expected client to exit without errors, got: %v", err)
	}
}

func TestClient_StateTracking(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	server := newServer()
	defer server.Close()

	client := &irc.Client{Nickname: "alice"}
	client.DialFn = func() (io.ReadWriteCloser, error) {
		return server, nil
	}

	tracker := irc.NewStateTracker(client)
	var snapshot irc.RoomState
	var tracked bool

	h := &irc.Router{}
	h.Use(tracker.Middleware)
	h.OnLogin(func(w irc.MessageWriter, m *irc.Message) {
		w.WriteMessage(irc.Join("#chat"))
	})
	// the first end-of-names marker belongs to the join snapshot, which
	// arrives before our own JOIN notice; only the resync that the tracker
	// requested afterward observes a tracked room.
	h.HandleFunc(irc.RplEndOfNames, func(w irc.MessageWriter, m *irc.Message) {
		if st, ok := tracker.RoomState("#chat"); ok {
			snapshot, tracked = st, ok
			w.WriteMessage(irc.Quit("bye"))
		}
	})

	if err := client.ConnectAndRun(ctx, h); err != nil {
		t.Fatalf("expected client to exit without errors, got: %v", err)
	}
	if !tracked {
		t.Fatal("expected #chat to be tracked after the name reply")
	}
	if snapshot.Admin != "alice" {
		t.Errorf("expected alice to be marked admin, got %q", snapshot.Admin)
	}
	if snapshot.Topic != "Welcome to #chat" {
		t.Errorf("topic: got %q", snapshot.Topic)
	}
}

// newServer scripts the server side of a login-and-join session.
func newServer() *irctest.Server {
	s := irctest.NewServer()
	const servername = "chat.test"
	state := struct {
		nick string
	}{nick: "guest-11223344"}

	s.Handler = irc.HandlerFunc(func(w irc.MessageWriter, m *irc.Message) {
		switch m.Command {
		case irc.CmdNick:
			s.WriteString(fmt.Sprintf(":%s 220 %s :Welcome to %s", servername, state.nick, servername))
			state.nick = m.Params.Get(1)
			s.WriteString(fmt.Sprintf(":%s 230 %s :Login successful", servername, state.nick))
		case irc.CmdJoin:
			room := m.Params.Get(1)
			s.WriteString(fmt.Sprintf(":%s 332 %s %s :Welcome to %s", servername, state.nick, room, room))
			s.WriteString(fmt.Sprintf(":%s 353 %s = %s :@%s", servername, state.nick, room, state.nick))
			s.WriteString(fmt.Sprintf(":%s 366 %s %s :End of /NAMES list", servername, state.nick, room))
			s.WriteString(fmt.Sprintf(":%s JOIN %s", state.nick, room))
		case irc.CmdNames:
			room := m.Params.Get(1)
			s.WriteString(fmt.Sprintf(":%s 353 %s = %s :@%s", servername, state.nick, room, state.nick))
			s.WriteString(fmt.Sprintf(":%s 366 %s %s :End of /NAMES list", servername, state.nick, room))
		case irc.CmdTopic:
			room := m.Params.Get(1)
			s.WriteString(fmt.Sprintf(":%s 332 %s %s :Welcome to %s", servername, state.nick, room, room))
		case irc.CmdQuit:
			_ = s.Close()
		}
	})
	return s
}
