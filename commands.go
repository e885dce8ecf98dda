package irc

// Msg constructs a new Message of type PRIVMSG,
// with target being the intended target room or nickname,
// and text being the message body.
func Msg(target, text string) *Message {
	m := NewMessage(CmdPrivmsg, target)
	m.Text = text
	return m
}

// Notice constructs a new message of type NOTICE,
// with target being the intended target room or nickname,
// and text being the message body.
func Notice(target, text string) *Message {
	m := NewMessage(CmdNotice, target)
	m.Text = text
	return m
}

// Nick constructs a nickname claim/change command.
func Nick(name string) *Message {
	return NewMessage(CmdNick, name)
}

// Join constructs a room join command.
func Join(room string) *Message {
	return NewMessage(CmdJoin, room)
}

// JoinWithKey constructs a join command for rooms that require a password
// (room mode +k is set).
func JoinWithKey(room, key string) *Message {
	return NewMessage(CmdJoin, room, key)
}

// Part constructs a leave (depart) command for room.
func Part(room string) *Message {
	return NewMessage(CmdPart, room)
}

// Quit constructs a command that will cause the server to terminate the
// connection. reason may be empty.
func Quit(reason string) *Message {
	m := NewMessage(CmdQuit)
	m.Text = reason
	return m
}

// Topic constructs a command setting the topic of room.
func Topic(room, topic string) *Message {
	m := NewMessage(CmdTopic, room)
	m.Text = topic
	return m
}

// TopicQuery constructs a command querying the current topic of room.
// The server answers with numeric 332.
func TopicQuery(room string) *Message {
	return NewMessage(CmdTopic, room)
}

// Names constructs a command requesting the member list of room.
// The server answers with numerics 353 and 366.
func Names(room string) *Message {
	return NewMessage(CmdNames, room)
}

// List constructs a command requesting the room directory.
// The server answers with numerics 321, 322 (one per room), and 323.
func List() *Message {
	return NewMessage(CmdList)
}

// Kick constructs a command to kick another user from a room.
func Kick(room, nick string) *Message {
	return NewMessage(CmdKick, room, nick)
}

// KickWithReason is similar to Kick, but the kick notice
// broadcast to the room will display reason.
func KickWithReason(room, nick, reason string) *Message {
	m := NewMessage(CmdKick, room, nick)
	m.Text = reason
	return m
}

// Ban constructs a command to add nick to the ban list of room.
// A banned member is kicked as part of the ban.
func Ban(room, nick string) *Message {
	return NewMessage(CmdBan, room, nick)
}

// Unban constructs a command to remove nick from the ban list of room.
func Unban(room, nick string) *Message {
	return NewMessage(CmdUnban, room, nick)
}

// Mode constructs a command to change a mode on a room.
// args carries the mode parameter when the flag takes one,
// e.g. Mode("#chat", "+k", "hunter2").
func Mode(target, flag string, args ...string) *Message {
	params := append([]string{target, flag}, args...)
	return NewMessage(CmdMode, params...)
}

// ModeQuery constructs a command to get the current modes of target.
func ModeQuery(target string) *Message {
	return NewMessage(CmdMode, target)
}

// Ping constructs a liveness probe. The peer answers with PONG
// carrying the same token.
func Ping(token string) *Message {
	m := NewMessage(CmdPing)
	m.Text = token
	return m
}

// Pong builds the reply to a PING. The reply token must be the same
// as the original PING token.
func Pong(token string) *Message {
	m := NewMessage(CmdPong)
	m.Text = token
	return m
}
