package irc

import (
	"bufio"
	"bytes"
	"context"
	"encoding"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

// A Client manages a connection to a chat server.
// It reads/writes protocol lines on the connection,
// and calls the handler for each Message it parses from the connection.
type Client struct {

	// The address ("host:port") of the chat server.
	// Addr is only used when DialFn is nil.
	Addr string

	// The nickname requested by the Client when connecting (required).
	// Nicknames cannot contain spaces.
	Nickname string

	// DialFn is a function that accepts no parameters and returns an io.ReadWriteCloser and error.
	//
	// The returned connection can be any io.ReadWriteCloser: a plain TCP connection,
	// a websocket adapter, a server mock, etc. The only requirement is that the
	// stream consists of newline-delimited protocol messages.
	//
	// When DialFn is nil, the default behavior dials Addr with net.Dial.
	DialFn func() (io.ReadWriteCloser, error)

	// ErrorLog specifies an optional logger for errors returned from parsing and encoding messages.
	// If nil, logging is done via the log package's standard logger.
	ErrorLog *log.Logger

	conn    io.ReadWriteCloser
	handler Handler
	state   clientState
	wg      sync.WaitGroup

	// errC is a buffered channel of errors.
	// The channel may be nil, so senders must always have a default case if sending blocked.
	// Only the first error sent to the channel will be used.
	errC chan error
}

// ConnectAndRun establishes a connection to the remote server and sends the
// protocol commands to register the client's nickname.
//
// The Handler h is called for every incoming Message parsed from the connection.
// Handlers are called synchronously because the ordering of incoming messages matters.
// Reading from the connection never blocks on a slow handler; parsed messages are
// buffered in arrival order until the handler catches up.
//
// ConnectAndRun always returns an error, with one exception: if the client sends a "QUIT"
// message followed by receiving an io.EOF from the connection, then the returned error
// will be nil.
func (c *Client) ConnectAndRun(ctx context.Context, h Handler) error {
	var (
		err     error
		cancel  context.CancelFunc
		mainctx context.Context
	)

	if c.Nickname == "" {
		panic("client nickname cannot be empty")
	}

	if c.DialFn == nil {
		if c.Addr == "" {
			panic("ConnectAndRun: Addr cannot be empty when DialFn is nil")
		}
		c.DialFn = func() (io.ReadWriteCloser, error) {
			return net.Dial("tcp", c.Addr)
		}
	}

	// this context intentionally doesn't use ctx as a parent because we listen for ctx.Done() to trigger
	// a graceful shutdown (sending QUIT). that doesn't work if all of our goroutines have already exited.
	mainctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	// initial state
	c.state = clientState{
		nick:   c.Nickname,
		server: strings.Split(c.Addr, ":")[0],
	}

	if c.conn != nil {
		return errors.New("the client already has a connection")
	}

	if c.conn, err = c.DialFn(); err != nil {
		return err
	}
	defer func() {
		_ = c.conn.Close()
		c.conn = nil
	}()

	// trigger shutdown on the first read from the error channel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.conn.Close()
		defer cancel()

		c.errC = make(chan error, 1)
		err = <-c.errC // err is used in the method return value
		c.errC = nil
	}()

	if h == nil {
		h = noop
	}

	c.handler = wrap(h, pingMiddleware, c.state.middleware)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.mainLoop(mainctx)
	}()

	// when ctx is done we try to close the connection gracefully
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		select {
		case <-mainctx.Done():
			// if mainctx is done that means an error was already read from c.errC and the client is already closing
			return
		case <-ctx.Done():
			c.WriteMessage(Quit("closing link"))
			select {
			// after sending a quit message we wait for c.errC to receive an error from the connection being closed by the server
			case <-mainctx.Done():
				// if we're still waiting, just shut down
			case <-time.After(3 * time.Second):
				c.exit(nil)
			}
		}
	}()

	c.WriteMessage(Nick(c.Nickname))

	c.wg.Wait()
	if err == io.EOF && c.state.status == statusDisconnecting {
		return nil
	}
	return err
}

func (c *Client) mainLoop(ctx context.Context) {
	q := c.startReading(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-q.out:
			if !ok {
				c.exit(errors.New("read channel closed"))
				return
			}
			c.handler.SpeakIRC(c, m)
		}
	}
}

// startReading runs the connection reader. Lines are parsed as they arrive and
// the resulting messages are queued so that s.Scan() is never waiting on the
// dispatch loop.
func (c *Client) startReading(ctx context.Context) *queue {
	q := newQueue()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(q.in)

		s := bufio.NewScanner(c.conn)
		for s.Scan() {
			l := s.Bytes()
			if len(l) == 0 {
				continue
			}
			m := new(Message)
			m.IncludePrefix()
			if err := m.UnmarshalText(l); err != nil {
				// A parse error might be caused by a malformed line from the remote server
				// or a bug in our message parser. Both cases are interesting but not
				// a reason to cause the client to exit.
				c.log(err)
				continue
			}
			// If the prefix is missing from the message, it is assumed to have
			// originated from the connection from which it was received.
			if (m.Source == Prefix{}) {
				m.Source.Host = c.state.server
			}
			select {
			case <-ctx.Done():
				// the main loop could have returned before the reader, so we need another way out
				// so that q.in <- m doesn't block. to exit in a timely manner the connection
				// will need to be closed to break s.Scan().
				return
			case q.in <- m:
			}
		}
		err := s.Err()
		// scanner.Err() returns nil when the reader error was EOF, but the client
		// wants to know when the error is EOF in order to determine if the
		// connection was terminated gracefully.
		if err == nil {
			c.exit(io.EOF)
		} else {
			c.exit(err)
		}
	}()
	return q
}

// exit requests the client to exit and return with err. Only the first such error
// is returned; any successive calls to exit will drop the error, such as if
// there were remaining writes that also failed with errors.
func (c *Client) exit(err error) {
	select {
	case c.errC <- err:
	default:
	}
}

// WriteMessage implements irc.MessageWriter.
// It writes m to the client's connection.
// Marshaling errors will be reported to the client's logger.
// Write errors will cause the client's run method to return with the first error.
func (c *Client) WriteMessage(m encoding.TextMarshaler) {
	// WriteMessage does not return any errors itself because the protocol does not
	// provide any guarantees about message delivery. Even if bytes are successfully
	// written to a TCP stream, that does not guarantee delivery to the intended recipient(s).
	var (
		err error
		b   []byte
	)

	if c.conn == nil {
		c.log(fmt.Errorf("WriteMessage: conn cannot be nil; m: %#v", m))
		return
	}

	b, err = m.MarshalText()
	if err != nil {
		c.log(fmt.Errorf("marshal text: %w; message: %#v", err, m))
		return
	}
	if !bytes.HasSuffix(b, []byte("\r\n")) {
		b = append(b, []byte("\r\n")...)
	}

	// this might not be the cleanest way to intercept outgoing quit commands,
	// but it works for now and lets us rewrite ConnectAndRun's error to nil
	// when the exit was intentional
	if bytes.HasPrefix(b, []byte("QUIT")) {
		c.state.status = statusDisconnecting
	}

	if _, err = c.conn.Write(b); err != nil {
		c.exit(err)
	}
}

// log reports errors which are noteworthy but not a reason for the client to exit.
func (c *Client) log(e error) {
	if c.ErrorLog == nil {
		log.Println(e)
		return
	}
	c.ErrorLog.Println(e)
}

// clientState groups and manages access to a minimal set of
// state around each new connection to the chat server.
type clientState struct {

	// the client's current nickname, used for matching events that originated from our client.
	// until the server confirms a login this holds the nickname we asked for, which may
	// differ from the placeholder identity the server assigned on connect.
	nick string

	// the server the client is connected to, used as the message source when incoming messages didn't contain a prefix.
	server string

	// status contains the client's connection state: disconnected, connected, etc.
	// not all states are implemented.
	// only the "disconnecting" state is used to rewrite io.EOF errors to nil when the disconnect was intentional
	status clientStatus
}

// Nick returns the client's current nickname according to the client's internal state tracking.
// This is used by some route matchers to determine when a message originated from or targeted our client.
func (c *Client) Nick() Nickname {
	return Nickname(c.state.nick)
}

// middleware intercepts various events to keep the client state up to date.
func (s *clientState) middleware(next Handler) Handler {
	return HandlerFunc(func(mw MessageWriter, m *Message) {
		switch m.Command {

		// Format: ":<server> 220 <placeholder> :Welcome to the chat server"
		// The placeholder is the identity the server assigned on connect.
		// We hold on to it until login succeeds so that events echoed back
		// before then can still be matched against our client.
		case RplWelcome:
			if nick := m.Params.Get(1); nick != "" {
				s.nick = nick
			}
			s.status = statusConnected
		// Format: ":<server> 230 <nick> :Login successful"
		case RplLoginOK:
			if nick := m.Params.Get(1); nick != "" {
				s.nick = nick
			}
		case CmdNick:
			if m.Source.Nick.Is(s.nick) {
				if m.Text != "" {
					s.nick = m.Text
				} else {
					s.nick = m.Params.Get(1)
				}
			}
		}

		next.SpeakIRC(mw, m)
	})
}

type clientStatus int

func (s clientStatus) String() string {
	switch s {
	case statusDisconnected:
		return "disconnected"
	case statusConnecting:
		return "connecting"
	case statusConnected:
		return "connected"
	case statusDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

const (
	statusDisconnected clientStatus = iota
	statusConnecting
	statusConnected
	statusDisconnecting
)
