// comment

/*
Package irc implements the line protocol and client for a multi-room chat server.

This overview provides brief introductions for types and concepts.
The godoc for each type contains expanded documentation.

Jump to the package examples to see what writing client code looks like with this package.

API

These are the main interfaces and structs that you will interact with while using this package:

	// A Handler responds to a chat message.
	type Handler interface {
		SpeakIRC(MessageWriter, *Message)
	}

	// A MessageWriter can write a chat message.
	type MessageWriter interface {
		WriteMessage(encoding.TextMarshaler)
	}

	// Message represents any incoming or outgoing protocol line.
	type Message struct {

		// Source is where the message originated from.
		Source  Prefix

		// Command is the verb or numeric (event type) such as PRIVMSG, JOIN, 220, etc.
		Command Command

		// Params contains the space-delimited message parameters.
		Params  Params

		// Text is the free-form trailing field, which may contain spaces.
		Text    string
	}

	// A Client manages a connection to a chat server.
	type Client struct {
		//...
	}

	// ConnectAndRun starts the client.
	func (c *Client) ConnectAndRun(ctx context.Context, h Handler) error {
		//...
	}

Client

The Client type provides a simple abstraction around a chat connection.
It manages reading and writing messages to the connection and calls your handler for each message it parses.
Incoming lines are parsed and queued in arrival order so that the connection reader is never blocked by a slow handler.

Handler

This interface enables the development of handler packages.

	type Handler interface {
	  SpeakIRC(MessageWriter, *Message)
	}

Because the Handler interface for the irc package mimics the signature of the http.Handler interface,
most patterns for http middleware can also be applied to irc handlers.

MessageWriter

The MessageWriter interface accepts any type that knows how to marshal itself into a line of protocol text.

Most of the time it makes sense to send a Message struct,
either by using the NewMessage function or any of the related constructors such as irc.Msg, irc.Join, irc.Topic, etc.

The named Message constructors should generally be preferred because they explicitly list the available parameters for each command.
This provides type safety, ordering safety, and most IDEs will provide intellisense suggestions and documentation for each parameter.

In other words:

	// prefer this:
	w.WriteMessage(irc.Msg("#world", "Hello!"))
	// instead of this:
	w.WriteMessage(irc.NewMessage(irc.CmdPrivmsg, "#world", "Hello!"))

Router

The Router type is an implementation of Handler.
It provides a convenient way to route incoming messages to specific handler functions by matching against message attributes like the command, source, target room, and more.
It also provides an easy way to apply middleware, either globally or to specific routes.
You are not required to use it, however. You can just as easily write your own message handler.

	r := &irc.Router{}
	r.OnText("!roll*", handleCommandRoll)

Middleware

Middleware are just handlers.
The term "middleware" applies to handlers which follow a pattern of accepting a handler as one of their arguments and returning a handler.

	func logHandler(next irc.Handler) irc.HandlerFunc {
		return func(w irc.MessageWriter, m *irc.Message) {
			log.Printf("parsed: %#v\n", m)
			next.SpeakIRC(w, m)
		}
	}

Because the ordering of received messages is important for calculating various client states,
it is generally not safe for middleware handlers to operate concurrently unless they can maintain message ordering.

State

The StateTracker type is middleware which maintains a local mirror of every room the client is in:
the member list, the room admin, the topic, and whether the room requires a password.
It rebuilds the mirror entirely from server pushes, requesting a fresh name list and topic whenever the client joins a room.
*/
package irc
