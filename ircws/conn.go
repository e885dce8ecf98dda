/*
Package ircws adapts a websocket connection into the io.ReadWriteCloser
stream expected by the irc package, so that browser clients can speak the
same line protocol as plain TCP clients.

Each websocket text message carries one or more CRLF-delimited protocol lines.
*/
package ircws

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Dial connects to the websocket endpoint at url and returns a connection
// suitable for irc.Client's DialFn:
//
//	client.DialFn = func() (io.ReadWriteCloser, error) {
//		return ircws.Dial(ctx, "ws://localhost:8080/ws")
//	}
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ws), nil
}

// Upgrade upgrades an HTTP request to a websocket connection and wraps it.
// It is the server-side counterpart to Dial.
func Upgrade(upgrader websocket.Upgrader, w http.ResponseWriter, req *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ws), nil
}

// NewConn wraps an established websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Conn is an io.ReadWriteCloser over a websocket connection.
//
// Reads return the bytes of incoming text messages in order. Control frames
// and binary messages are skipped. A normal websocket closure is reported as
// io.EOF so that callers treat it the same as a remote TCP hangup.
type Conn struct {
	ws *websocket.Conn

	// mu synchronizes writes. gorilla/websocket allows at most one
	// concurrent writer per connection.
	mu sync.Mutex

	// cur holds the unread remainder of the current incoming message.
	cur io.Reader
}

func (c *Conn) Read(p []byte) (int, error) {
	for {
		if c.cur != nil {
			n, err := c.cur.Read(p)
			if err == io.EOF {
				c.cur = nil
				if n > 0 {
					return n, nil
				}
				continue
			}
			return n, err
		}
		typ, r, err := c.ws.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if typ != websocket.TextMessage {
			continue
		}
		c.cur = r
	}
}

func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close frame on a best-effort basis and closes the underlying connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.ws.Close()
}
