package irc

import (
	"fmt"
)

// Target returns the intended target of a message.
// In the case of direct messages (queries), Target will equal the receiving
// client's nickname. For room messages, Target is the name of the room the
// message was sent to.
//
// The error may be discarded without checking when it's known that the
// message will always be a supported command, for example inside a handler
// that is only ever called for PRIVMSG events. Errors are only returned to
// prevent the method from returning unexpected results for message types
// where the first parameter is not a target.
func (m *Message) Target() (string, error) {
	switch m.Command {
	case CmdPrivmsg, CmdNotice, CmdTopic, CmdKick, CmdPart, CmdJoin, CmdMode, CmdBan, CmdUnban:
		return m.Params.Get(1), nil
	default:
		return "", fmt.Errorf("%s: target method not supported", m.Command)
	}
}

// Chan returns the room a message applies to.
// In the case of direct messages, Chan will return an empty string.
//
// Numeric replies carry the room at different parameter positions than
// commands do; Chan knows the positions for the replies this server sends.
func (m *Message) Chan() (string, error) {
	switch m.Command {
	case CmdPrivmsg, CmdNotice, CmdJoin, CmdTopic, CmdKick, CmdPart, CmdMode, CmdBan, CmdUnban:
		target := m.Params.Get(1)
		if !IsRoom(target) {
			return "", nil
		}
		return target, nil
	case RplTopic, RplNoTopic, RplEndOfNames:
		// ":server 332 <nick> <room> :<topic>"
		return m.Params.Get(2), nil
	case RplNamReply:
		// ":server 353 <nick> = <room> :@alice bob"
		return m.Params.Get(3), nil
	default:
		return "", fmt.Errorf("%s: chan method not supported", m.Command)
	}
}

// IsRoom reports whether name looks like a room name.
// By convention room names carry a leading '#'.
func IsRoom(name string) bool {
	return len(name) > 0 && name[0] == '#'
}
