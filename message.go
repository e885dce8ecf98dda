package irc

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"strings"
)

// warnTruncate is an error indicating that an encoded line is too long. The message
// was still written to the connection, but the server or the receiving clients
// may truncate the end of the line.
//
// Most IRC-style servers limit messages to 512 bytes in length, including the
// trailing CR-LF characters. The chat server in this module does not enforce the
// limit itself, but interoperating with other software is easier when lines
// stay under it.
//
// If the server on the other end is known to accept longer lines, it is safe
// to discard this error.
// E.g.:
//     if errors.Is(err, warnTruncate) { err = nil }
var warnTruncate = errors.New("message length exceeds the 512-byte line limit and may be truncated")

// maxLineLen is the classic IRC line length limit, including CR-LF.
const maxLineLen = 512

// NewMessage constructs a new Message to be sent on the connection
// with cmd as the verb and args as the message parameters.
//
// Parameters must not contain SPACE (ascii 32, %x20); free-form text
// belongs in the Text field, which is always encoded last.
// Including SPACE in a parameter will result in undefined behavior.
func NewMessage(cmd Command, args ...string) *Message {
	p := make(Params, len(args))
	copy(p, args)
	cmd.normalize()
	return &Message{
		Command: cmd,
		Params:  p,
	}
}

// Message represents any incoming or outgoing line of the chat protocol.
//
// Background
//
// The protocol is line-delimited and text-based, modeled on IRC.
// The terms "message", "line", or "event" might be used within this package to refer to a Message
// (although "event" usually only refers to an incoming message).
//
// A message consists of four parts: prefix (source), verb, params, and an
// optional trailing free-text field.
type Message struct {

	// Source is where the message originated from.
	// It's set by the prefix portion of a line.
	//
	// Source should be left empty for messages that will be written by a
	// client connection; the server fills it in when relaying.
	Source Prefix

	// Command is the verb or numeric such as PRIVMSG, KICK, 332, etc.
	// It may also sometimes be referred to as the event type.
	Command Command

	// Params contains the positional message parameters.
	// Parameters must never contain SPACE (ascii 32);
	// free-form text belongs in Text.
	Params Params

	// Text is the optional trailing free-text field. It is the only part of
	// a message allowed to contain SPACE, and it always occupies the last
	// slot of an encoded line, introduced by ':'.
	//
	// An empty Text is encoded as an absent trailing field. The wire format
	// cannot distinguish the two, and neither does this package.
	Text string

	// includePrefix controls whether MarshalText will write the prefix.
	includePrefix bool
}

// MarshalText implements encoding.TextMarshaler, mainly for use with irc.MessageWriter.
func (m *Message) MarshalText() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 256))
	var err error

	if m.includePrefix && m.Source != (Prefix{}) {
		buf.WriteRune(startPrefix)
		buf.WriteString(m.Source.String())
		buf.WriteRune(delimParam)
	}

	buf.WriteString(m.Command.String())

	for _, p := range m.Params {
		buf.WriteRune(delimParam)
		buf.WriteString(p)
	}

	if m.Text != "" {
		buf.WriteRune(delimParam)
		buf.WriteRune(startTrailing)
		buf.WriteString(m.Text)
	}
	buf.WriteString("\r\n")

	if buf.Len() > maxLineLen {
		err = fmt.Errorf("%w: message length is %d bytes", warnTruncate, buf.Len())
	}

	return buf.Bytes(), err
}

// UnmarshalText implements encoding.TextUnmarshaler,
// accepting a line read from a connection.
// text should not include the trailing CR-LF pair.
//
// This will unmarshal an arbitrarily long sequence of bytes.
// Length limitations should be implemented at the scanner.
func (m *Message) UnmarshalText(text []byte) error {

	// go start the lexer
	l := lex(string(text))

	// re-using a message to unmarshal a new line should clear old fields
	m.Source = Prefix{}
	m.Command = ""
	m.Params = nil
	m.Text = ""

	for {
		i := l.nextItem()
		switch i.typ {
		case itemEOF:
			return nil
		case itemError:
			return errors.New(i.val)
		case itemNickname:
			m.Source.Nick = Nickname(i.val)
		case itemUser:
			m.Source.User = i.val
		case itemHost:
			m.Source.Host = i.val
		case itemCommand:
			m.Command = Command(i.val)
		case itemParam:
			m.Params = append(m.Params, i.val)
		case itemTrailing:
			m.Text = i.val
		}
	}
}

// IncludePrefix controls whether the Source field will be marshaled by MarshalText.
//
// Messages written by a client should not carry a prefix: the server knows
// which connection a line arrived on and stamps the prefix itself when
// relaying. Received messages have this enabled so that middleware which
// clones a message and re-encodes it preserves the source.
func (m *Message) IncludePrefix() {
	m.includePrefix = true
}

// Command is a protocol verb such as PRIVMSG, JOIN, or a numeric like 332.
type Command string

// String implements fmt.Stringer
func (c Command) String() string {
	return string(c)
}

// normalize will modify the command to use consistent casing.
func (c *Command) normalize() {
	*c = Command(strings.ToUpper(c.String()))
}

// is does a case-insensitive compare between two commands, which is
// useful if a command was given as a string constant.
func (c Command) is(oc Command) bool {
	return strings.EqualFold(string(c), string(oc))
}

// Prefix is the optional message (line) prefix,
// which indicates the source (user or server) of the message,
// depending on the prefix format.
//
// Example line with nickname-only prefix:
// 	:alice PRIVMSG #chat :hi
//
// Example "fulladdress" prefix:
// 	:alice!alice@server TOPIC #chat :release day
//
// Example server prefix:
// 	:chat.example.com 332 alice #chat :release day
//
type Prefix struct {
	Nick Nickname
	User string
	Host string
}

// IsServer returns true when the message originated from a server host
// (as opposed to a user). When true, the server name is in the Host field.
func (p Prefix) IsServer() bool {
	return p.Host != "" && p.Nick == ""
}

// String implements fmt.Stringer
func (p Prefix) String() string {
	switch {
	case p.Nick == "" && p.User == "" && p.Host == "":
		return ""
	case p.Nick == "" && p.User == "":
		return p.Host
	case p.User == "":
		return p.Nick.String()
	default:
		return p.Nick.String() + "!" + p.User + "@" + p.Host
	}
}

// Params contains the slice of positional arguments for a message.
//
// Prefer the Get method for reading params rather than accessing the slice directly.
//
// Parameters must never contain SPACE (ascii 32); the trailing free-text
// portion of a line is carried by Message.Text instead.
type Params []string

// Get returns the nth parameter (starting at 1) from the parameters list,
// or "" (empty string) if it did not exist.
//
// Because parameters have meaning based on their position in the argument list,
// and because the meaning and position depends on which command/verb was used,
// Get does not differentiate between missing and empty parameters.
// Callers may simply check whether ordinal parameter n is equivalent to empty string.
func (p Params) Get(n int) string {
	if n > len(p) || n < 1 {
		return ""
	}
	return p[n-1]
}

type Nickname string

func (n Nickname) String() string {
	return string(n)
}

// Is determines whether a nickname matches a string.
// The chat server treats nicknames as case-sensitive, so this is a plain
// byte comparison.
func (n Nickname) Is(other string) bool {
	return n.String() == other
}

// MessageWriter contains methods for sending messages on a chat connection.
type MessageWriter interface {

	// WriteMessage writes the message to the connection's outgoing stream.
	// The given encoding.TextMarshaler MUST return a byte slice which conforms to the wire protocol.
	// If the slice does not end in "\r\n", then the sequence will be appended.
	//
	// The returned slice from the MarshalText method will be written to the connection with a single call to Write.
	WriteMessage(encoding.TextMarshaler)
}
