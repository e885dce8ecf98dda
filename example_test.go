package irc_test

import (
	"context"
	"fmt"
	"log"

	"github.com/cyko1218/irc"
)

// This example connects to a chat server, joins a room after login, and
// replies to a simple text command.
func Example() {
	client := &irc.Client{
		Addr:     "localhost:6667",
		Nickname: "hellobot",
	}

	router := &irc.Router{}
	router.OnLogin(func(w irc.MessageWriter, m *irc.Message) {
		w.WriteMessage(irc.Join("#world"))
	})
	router.OnText("!hello", func(w irc.MessageWriter, m *irc.Message) {
		room, err := m.Chan()
		if err != nil {
			return
		}
		w.WriteMessage(irc.Msg(room, "Hello, "+m.Source.Nick.String()+"!"))
	})

	err := client.ConnectAndRun(context.Background(), router)
	if err != nil {
		log.Fatal(err)
	}
}

// Room state can be mirrored locally by attaching a StateTracker to the
// handler chain.
func ExampleStateTracker() {
	client := &irc.Client{
		Addr:     "localhost:6667",
		Nickname: "watcher",
	}

	tracker := irc.NewStateTracker(client)
	tracker.Subscribe(func(room string) {
		if st, ok := tracker.RoomState(room); ok {
			fmt.Printf("%s: %d members, admin %s\n", st.Name, len(st.Users), st.Admin)
		}
	})

	router := &irc.Router{}
	router.Use(tracker.Middleware)
	router.OnLogin(func(w irc.MessageWriter, m *irc.Message) {
		w.WriteMessage(irc.Join("#world"))
	})

	err := client.ConnectAndRun(context.Background(), router)
	if err != nil {
		log.Fatal(err)
	}
}
