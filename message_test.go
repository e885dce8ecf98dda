package irc

import (
	"strings"
	"testing"
)

func assertMessageEquals(t *testing.T, expected *Message, got *Message) {
	t.Helper()
	assertPrefixEqual(t, expected.Source, got.Source)
	assertCommandEquals(t, expected.Command, got.Command)
	assertParamsEqual(t, expected.Params, got.Params)
	if expected.Text != got.Text {
		t.Errorf("text didn't match; got %q wanted %q", got.Text, expected.Text)
	}
}
func assertPrefixEqual(t *testing.T, expected Prefix, got Prefix) {
	t.Helper()
	if expected.Nick != got.Nick || expected.User != got.User || expected.Host != got.Host {
		t.Errorf("prefix didn't match; got %q wanted %q", got, expected)
	}
}
func assertCommandEquals(t *testing.T, expected Command, got Command) {
	t.Helper()
	if !got.is(expected) {
		t.Errorf("command didn't match; got %q wanted %q", got, expected)
	}
}
func assertParamsEqual(t *testing.T, expected Params, got Params) {
	t.Helper()
	if len(got) != len(expected) {
		t.Errorf("actual slice(%#v)(%d) was not the same length as expected slice(%#v)(%d)", got, len(got), expected, len(expected))
		return
	}
	for i, v := range got {
		if v != expected[i] {
			t.Errorf("actual slice value %q was not equal to expected value %q at index %d", v, expected[i], i)
		}
	}
}

func fromBytes(b []byte) (*Message, error) {
	m := &Message{}
	err := m.UnmarshalText(b)
	return m, err
}

func TestParseMessage(t *testing.T) {
	var lines = []struct {
		raw      string
		expected *Message
	}{
		{
			"NICK alice",
			&Message{Command: CmdNick, Params: Params{"alice"}},
		},
		{
			"JOIN #chat",
			&Message{Command: CmdJoin, Params: Params{"#chat"}},
		},
		{
			"JOIN #secret hunter2",
			&Message{Command: CmdJoin, Params: Params{"#secret", "hunter2"}},
		},
		{
			"PRIVMSG #chat :hello there",
			&Message{Command: CmdPrivmsg, Params: Params{"#chat"}, Text: "hello there"},
		},
		{
			":alice PRIVMSG #chat :hi",
			&Message{Source: Prefix{Nick: "alice"}, Command: CmdPrivmsg, Params: Params{"#chat"}, Text: "hi"},
		},
		{
			":alice NICK :alison",
			&Message{Source: Prefix{Nick: "alice"}, Command: CmdNick, Text: "alison"},
		},
		{
			":alice!alice@host.example.com TOPIC #chat :release day",
			&Message{Source: Prefix{Nick: "alice", User: "alice", Host: "host.example.com"}, Command: CmdTopic, Params: Params{"#chat"}, Text: "release day"},
		},
		{
			":chat.local 220 guest-5f2a91bc :Welcome to chat.local",
			&Message{Source: Prefix{Host: "chat.local"}, Command: RplWelcome, Params: Params{"guest-5f2a91bc"}, Text: "Welcome to chat.local"},
		},
		{
			":chat.local 230 alice :Login successful",
			&Message{Source: Prefix{Host: "chat.local"}, Command: RplLoginOK, Params: Params{"alice"}, Text: "Login successful"},
		},
		{
			":chat.local 353 alice = #chat :@alice bob carol",
			&Message{Source: Prefix{Host: "chat.local"}, Command: RplNamReply, Params: Params{"alice", "=", "#chat"}, Text: "@alice bob carol"},
		},
		{
			":chat.local 322 alice #chat 3 :Welcome to #chat",
			&Message{Source: Prefix{Host: "chat.local"}, Command: RplList, Params: Params{"alice", "#chat", "3"}, Text: "Welcome to #chat"},
		},
		{
			":bob KICK #chat mallory :spamming",
			&Message{Source: Prefix{Nick: "bob"}, Command: CmdKick, Params: Params{"#chat", "mallory"}, Text: "spamming"},
		},
		{
			":bob MODE #chat +b mallory",
			&Message{Source: Prefix{Nick: "bob"}, Command: CmdMode, Params: Params{"#chat", "+b", "mallory"}},
		},
		{
			"MODE #chat +k hunter2",
			&Message{Command: CmdMode, Params: Params{"#chat", "+k", "hunter2"}},
		},
		{
			"QUIT :gone for lunch",
			&Message{Command: CmdQuit, Text: "gone for lunch"},
		},
		{
			"LIST",
			&Message{Command: CmdList},
		},
		{
			"PING :12345",
			&Message{Command: CmdPing, Text: "12345"},
		},
	}

	for _, tt := range lines {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := fromBytes([]byte(tt.raw))
			if err != nil {
				t.Fatalf("parse error for line %q: %v", tt.raw, err)
			}
			assertMessageEquals(t, tt.expected, got)
		})
	}
}

func TestParseMessageErrors(t *testing.T) {
	var lines = []string{
		"",
		":",
		": PRIVMSG #chat :hi",
		":nick!@ PRIVMSG #chat :hi",
	}
	for _, raw := range lines {
		t.Run(raw, func(t *testing.T) {
			if _, err := fromBytes([]byte(raw)); err == nil {
				t.Errorf("expected a parse error for line %q, got none", raw)
			}
		})
	}
}

func TestMarshalMessage(t *testing.T) {
	var tests = []struct {
		name     string
		m        *Message
		expected string
	}{
		{"nick", Nick("alice"), "NICK alice\r\n"},
		{"join", Join("#chat"), "JOIN #chat\r\n"},
		{"join with key", JoinWithKey("#secret", "hunter2"), "JOIN #secret hunter2\r\n"},
		{"privmsg", Msg("#chat", "hi"), "PRIVMSG #chat :hi\r\n"},
		{"topic", Topic("#chat", "release day"), "TOPIC #chat :release day\r\n"},
		{"topic query", TopicQuery("#chat"), "TOPIC #chat\r\n"},
		{"mode", Mode("#chat", "+k", "hunter2"), "MODE #chat +k hunter2\r\n"},
		{"kick with reason", KickWithReason("#chat", "mallory", "spamming"), "KICK #chat mallory :spamming\r\n"},
		{"ban", Ban("#chat", "mallory"), "BAN #chat mallory\r\n"},
		{"quit", Quit("bye"), "QUIT :bye\r\n"},
		{"list", List(), "LIST\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.m.MarshalText()
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(b) != tt.expected {
				t.Errorf("got %q wanted %q", b, tt.expected)
			}
		})
	}
}

// prefixes are only written for messages that were parsed from a connection
// (or explicitly enabled); messages built by constructors stay bare so a
// client never claims a source.
func TestMarshalPrefix(t *testing.T) {
	m := Msg("#chat", "hi")
	m.Source = Prefix{Nick: "alice"}
	b, _ := m.MarshalText()
	if string(b) != "PRIVMSG #chat :hi\r\n" {
		t.Errorf("prefix should not be written unless enabled; got %q", b)
	}

	m.IncludePrefix()
	b, _ = m.MarshalText()
	if string(b) != ":alice PRIVMSG #chat :hi\r\n" {
		t.Errorf("got %q wanted %q", b, ":alice PRIVMSG #chat :hi\r\n")
	}
}

func TestMarshalWarnsOnLongLines(t *testing.T) {
	m := Msg("#chat", strings.Repeat("a", 600))
	b, err := m.MarshalText()
	if err == nil {
		t.Error("expected a length warning for an over-long line")
	}
	if len(b) == 0 {
		t.Error("the line should still be returned alongside the warning")
	}
}

// every parsed message must survive a marshal/parse cycle unchanged as long
// as its params are space-free and the text field carries any free text.
func TestRoundTrip(t *testing.T) {
	var lines = []string{
		":alice PRIVMSG #chat :hello there",
		":chat.local 353 alice = #chat :@alice bob",
		":bob!bob@example.com KICK #chat mallory :bye",
		"JOIN #secret hunter2",
		"QUIT :brb",
	}
	for _, raw := range lines {
		t.Run(raw, func(t *testing.T) {
			first, err := fromBytes([]byte(raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			first.IncludePrefix()
			b, err := first.MarshalText()
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			second, err := fromBytes([]byte(strings.TrimSuffix(string(b), "\r\n")))
			if err != nil {
				t.Fatalf("reparse: %v", err)
			}
			assertMessageEquals(t, first, second)
		})
	}
}

func TestPrefixString(t *testing.T) {
	var tests = []struct {
		p        Prefix
		expected string
	}{
		{Prefix{}, ""},
		{Prefix{Nick: "alice"}, "alice"},
		{Prefix{Host: "chat.local"}, "chat.local"},
		{Prefix{Nick: "alice", User: "alice", Host: "example.com"}, "alice!alice@example.com"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.expected {
			t.Errorf("got %q wanted %q", got, tt.expected)
		}
	}
}

func TestCommandConstants(t *testing.T) {
	// the constants participate in everything Command does: method calls,
	// switch cases, and case-insensitive matching
	if got := CmdNick.String(); got != "NICK" {
		t.Errorf("CmdNick.String() = %q", got)
	}
	if got := RplErrUnknownCommand.String(); got != "421" {
		t.Errorf("RplErrUnknownCommand.String() = %q", got)
	}
	var c Command = "privmsg"
	if !c.is(CmdPrivmsg) {
		t.Error("command matching should be case-insensitive")
	}
	switch Command("JOIN") {
	case CmdJoin:
	default:
		t.Error("a parsed command should match its constant in a switch")
	}
}

func TestParamsGet(t *testing.T) {
	p := Params{"#chat", "+k", "hunter2"}
	if got := p.Get(1); got != "#chat" {
		t.Errorf("got %q wanted %q", got, "#chat")
	}
	if got := p.Get(3); got != "hunter2" {
		t.Errorf("got %q wanted %q", got, "hunter2")
	}
	if got := p.Get(4); got != "" {
		t.Errorf("out-of-range params should be empty; got %q", got)
	}
	if got := p.Get(0); got != "" {
		t.Errorf("params are 1-indexed; got %q", got)
	}
}
