// Command chat-server runs the multi-room chat server, accepting plain TCP
// connections and, optionally, websocket connections on a second listener.
package main

import (
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/cyko1218/irc/ircd"
)

func main() {
	args := parseArgs()

	srv := ircd.NewServer(ircd.Config{
		Name:         args.Name,
		RoomCapacity: args.RoomCapacity,
		MessageRate:  rate.Limit(args.MessageRate),
		MessageBurst: args.MessageBurst,
		Logger:       log.Default(),
	})

	l, err := net.Listen("tcp", args.Addr)
	if err != nil {
		log.Fatalf("listen %s: %v", args.Addr, err)
	}

	errC := make(chan error, 2)
	go func() {
		errC <- srv.Serve(l)
	}()

	if args.WSAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", srv.WebsocketHandler())
		go func() {
			errC <- http.ListenAndServe(args.WSAddr, mux)
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("received %v, shutting down", s)
		srv.Shutdown()
	case err := <-errC:
		if err != nil && !errors.Is(err, ircd.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
		srv.Shutdown()
	}
}
