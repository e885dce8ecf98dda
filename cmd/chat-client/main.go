// Command chat-client is a minimal console client for the chat server.
//
// Input lines starting with "/" are commands (/join, /msg, /nick, ...);
// anything else is sent to the most recently joined room.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/cyko1218/irc"
	"github.com/cyko1218/irc/ircdebug"
	"github.com/cyko1218/irc/ircws"
)

func main() {
	var (
		addr    = flag.String("addr", "localhost:6667", "server address, either host:port or a ws:// url")
		nick    = flag.String("nick", "", "nickname to claim on connect (required)")
		verbose = flag.Bool("verbose", false, "copy the raw protocol stream to stderr")
	)
	flag.Parse()
	if *nick == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &irc.Client{
		Addr:     *addr,
		Nickname: *nick,
	}
	client.DialFn = func() (io.ReadWriteCloser, error) {
		var conn io.ReadWriteCloser
		var err error
		if strings.HasPrefix(*addr, "ws://") || strings.HasPrefix(*addr, "wss://") {
			conn, err = ircws.Dial(ctx, *addr)
		} else {
			conn, err = net.Dial("tcp", *addr)
		}
		if err != nil {
			return nil, err
		}
		if *verbose {
			conn = ircdebug.WriteTo(os.Stderr, conn, "-> ", "<- ")
		}
		return conn, nil
	}

	ui := &console{client: client}
	tracker := irc.NewStateTracker(client)
	tracker.Subscribe(func(room string) {
		// state changes are already visible through the printed notices;
		// the subscription is where a richer display would hook in
	})

	router := &irc.Router{}
	router.Use(tracker.Middleware)
	router.OnConnect(func(mw irc.MessageWriter, m *irc.Message) {
		ui.printf("* %s", m.Text)
	})
	router.OnLogin(func(mw irc.MessageWriter, m *irc.Message) {
		ui.printf("* logged in as %s", m.Params.Get(1))
	})
	router.OnText("*", func(mw irc.MessageWriter, m *irc.Message) {
		if m.Source.Nick.Is(client.Nick().String()) {
			// our own echo came back from the room broadcast
			return
		}
		target, _ := m.Target()
		ui.printf("[%s] <%s> %s", target, m.Source.Nick, m.Text)
	})
	router.OnNotice("*", func(mw irc.MessageWriter, m *irc.Message) {
		ui.printf("-%s- %s", m.Source.Nick, m.Text)
	})
	router.OnJoin(func(mw irc.MessageWriter, m *irc.Message) {
		room, _ := m.Chan()
		if m.Source.Nick.Is(client.Nick().String()) {
			ui.setRoom(room)
			ui.printf("* now talking in %s", room)
			return
		}
		ui.printf("* %s joined %s", m.Source.Nick, room)
	})
	router.OnPart(func(mw irc.MessageWriter, m *irc.Message) {
		room, _ := m.Chan()
		ui.printf("* %s left %s", m.Source.Nick, room)
	})
	router.OnKick(func(mw irc.MessageWriter, m *irc.Message) {
		ui.printf("* %s kicked %s from %s (%s)", m.Source.Nick, m.Params.Get(2), m.Params.Get(1), m.Text)
	})
	router.OnQuit(func(mw irc.MessageWriter, m *irc.Message) {
		ui.printf("* %s quit (%s)", m.Source.Nick, m.Text)
	})
	router.OnTopic(func(mw irc.MessageWriter, m *irc.Message) {
		ui.printf("* topic for %s: %s", m.Params.Get(2), m.Text)
	})
	router.OnMode(func(mw irc.MessageWriter, m *irc.Message) {
		ui.printf("* mode %s %s %s", m.Params.Get(1), m.Params.Get(2), m.Params.Get(3))
	})
	router.OnNick(func(nick, newnick irc.Nickname) {
		ui.printf("* %s is now known as %s", nick, newnick)
	})
	router.HandleFunc(irc.RplList, func(mw irc.MessageWriter, m *irc.Message) {
		ui.printf("* %s (%s users) %s", m.Params.Get(2), m.Params.Get(3), m.Text)
	})
	router.HandleFunc(irc.RplNamReply, func(mw irc.MessageWriter, m *irc.Message) {
		ui.printf("* users in %s: %s", m.Params.Get(3), m.Text)
	})

	go readInput(cancel, ui, tracker)

	if err := client.ConnectAndRun(ctx, router); err != nil {
		log.Fatal(err)
	}
}

// console tracks the active room and serializes output lines.
type console struct {
	client *irc.Client

	mu   sync.Mutex
	room string
}

func (c *console) printf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func (c *console) setRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = room
}

func (c *console) currentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func readInput(cancel context.CancelFunc, ui *console, tracker *irc.StateTracker) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			room := ui.currentRoom()
			if room == "" {
				ui.printf("* join a room first (/join #name)")
				continue
			}
			ui.client.WriteMessage(irc.Msg(room, line))
			ui.printf("[%s] <%s> %s", room, ui.client.Nick(), line)
			continue
		}

		cmd, rest, _ := strings.Cut(line[1:], " ")
		switch strings.ToLower(cmd) {
		case "quit":
			cancel()
			return
		case "nick":
			ui.client.WriteMessage(irc.Nick(rest))
		case "join":
			room, key, _ := strings.Cut(rest, " ")
			if key == "" {
				ui.client.WriteMessage(irc.Join(room))
			} else {
				ui.client.WriteMessage(irc.JoinWithKey(room, key))
			}
		case "part":
			room := rest
			if room == "" {
				room = ui.currentRoom()
			}
			ui.client.WriteMessage(irc.Part(room))
		case "msg":
			target, text, _ := strings.Cut(rest, " ")
			ui.client.WriteMessage(irc.Msg(target, text))
		case "topic":
			room, text, _ := strings.Cut(rest, " ")
			if text == "" {
				ui.client.WriteMessage(irc.TopicQuery(room))
			} else {
				ui.client.WriteMessage(irc.Topic(room, text))
			}
		case "names":
			ui.client.WriteMessage(irc.Names(rest))
		case "list":
			ui.client.WriteMessage(irc.List())
		case "mode":
			room, flags, _ := strings.Cut(rest, " ")
			mode, arg, _ := strings.Cut(flags, " ")
			if arg == "" {
				ui.client.WriteMessage(irc.Mode(room, mode))
			} else {
				ui.client.WriteMessage(irc.Mode(room, mode, arg))
			}
		case "kick":
			room, remainder, _ := strings.Cut(rest, " ")
			target, reason, _ := strings.Cut(remainder, " ")
			if reason == "" {
				ui.client.WriteMessage(irc.Kick(room, target))
			} else {
				ui.client.WriteMessage(irc.KickWithReason(room, target, reason))
			}
		case "ban":
			room, target, _ := strings.Cut(rest, " ")
			ui.client.WriteMessage(irc.Ban(room, target))
		case "unban":
			room, target, _ := strings.Cut(rest, " ")
			ui.client.WriteMessage(irc.Unban(room, target))
		case "rooms":
			for _, room := range tracker.Rooms() {
				st, ok := tracker.RoomState(room)
				if !ok {
					continue
				}
				ui.printf("* %s (admin %s, %d users) %s", st.Name, st.Admin, len(st.Users), st.Topic)
			}
		default:
			ui.printf("* unknown command: /%s", cmd)
		}
	}
	cancel()
}
