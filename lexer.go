// This lexer follows the method described in the video:
// Lexical Scanning in Go - Rob Pike
// https://www.youtube.com/watch?v=HxaD_trXwRE

package irc

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	delimParam    = ' ' // the delimiter token for parameters
	startPrefix   = ':' // the delimiter for the prefix
	startTrailing = ':' // the delimiter for the trailing free-text field
)

// item represents a token returned from the scanner.
type item struct {
	typ itemType // Type, such as itemParam
	val string   // the value of the lexed token
}

func (it itemType) String() string {
	switch it {
	case itemCommand:
		return "Command"
	case itemPrefix:
		return "Source"
	case itemNickname:
		return "Nickname"
	case itemUser:
		return "User"
	case itemHost:
		return "Host"
	case itemParam:
		return "Param"
	case itemTrailing:
		return "Trailing"
	case itemError:
		return "Error"
	default:
		return ""
	}
}
func (i item) String() string {
	switch {
	case i.typ == itemEOF:
		return "EOF"
	case i.typ == itemError:
		return i.val
	}

	return fmt.Sprintf("%s: %q", i.typ, i.val)
}

// itemType identifies the type of lex items.
type itemType int

const (
	itemError itemType = iota // error occurred; value is text of error.
	itemNickname
	itemUser
	itemHost
	itemPrefix   // the prefix portion of a message, e.g. ":chat.example.com"
	itemCommand  // the command or numeric, e.g. "PRIVMSG" or "332"
	itemParam    // a positional parameter, e.g. the target of a PRIVMSG
	itemTrailing // the trailing free-text field, everything after " :"
	itemEOF      // end of message
)

const eof = -1

// stateFn represents the state of the scanner as a function that returns the next state.
type stateFn func(*lexer) stateFn

// lexer holds the state of the scanner.
type lexer struct {
	input string    // the string being scanned.
	start int       // start position of this item.
	pos   int       // current position in the input.
	width int       // width of the last rune read
	items chan item // channel of scanned items
}

// run lexes the input by executing state functions until
// the state is nil.
func (l *lexer) run() {
	for state := lexStart; state != nil; {
		state = state(l)
	}
	close(l.items)
}

func (l *lexer) emit(t itemType) {
	l.items <- item{t, l.input[l.start:l.pos]}
	l.start = l.pos
}

func (l *lexer) ignore() {
	l.start = l.pos
}

func (l *lexer) ignoreRun(run string) {
	l.acceptRun(run)
	l.ignore()
}

// next returns the next rune in the input.
func (l *lexer) next() (r rune) {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, l.width = utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += l.width
	return r
}

// peek returns but does not consume the next rune in the input.
func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

// backup steps back one rune. Can only be called once per call of next.
func (l *lexer) backup() {
	l.pos -= l.width
}

// errorf returns an error token and terminates the scan by passing
// back a nil pointer that will be the next state, terminating l.nextItem.
func (l *lexer) errorf(format string, args ...interface{}) stateFn {
	l.items <- item{itemError, fmt.Sprintf(format, args...)}
	return nil
}

// acceptRun consumes a run of runes from the valid set.
func (l *lexer) acceptRun(valid string) {
	for strings.ContainsRune(valid, l.next()) {
	}
	l.backup()
}

func lex(input string) *lexer {
	l := &lexer{
		input: input,
		items: make(chan item),
	}

	go l.run() // Concurrently run state machine
	return l
}

// nextItem returns the next item from the input.
// Called by the parser, not in the lexing goroutine.
func (l *lexer) nextItem() item {
	return <-l.items
}

func lexStart(l *lexer) stateFn {
	if l.peek() == startPrefix {
		return lexPrefixStart
	}
	return lexCommand
}

// lexPrefixStart scans a prefix delimiter, which is known to be present.
func lexPrefixStart(l *lexer) stateFn {
	l.pos++ // the delimiters are single-byte; the protocol is from the days of ascii
	l.ignore()
	return lexNickname
}

// lexNickname scans the nickname portion of a message prefix
func lexNickname(l *lexer) stateFn {
	for {
		switch r := l.next(); {
		case r == delimParam:
			l.backup()
			if l.pos == l.start {
				return l.errorf("empty prefix")
			}
			l.emit(itemNickname)
			l.ignoreRun(" ")
			if l.peek() == eof {
				return l.errorf("unexpected end of input; expected command")
			}
			return lexCommand
		case r == '.':
			// '.' is invalid inside a nickname, which means the prefix was in the :host form
			return lexHost
		case r == '!':
			l.backup()
			if l.pos == l.start {
				return l.errorf("empty nickname in prefix")
			}
			l.emit(itemNickname)
			return lexUserStart
		case r == eof:
			return l.errorf("unexpected end of input")
		}
	}
}

// lexUserStart scans the user delimiter from a message prefix, which is known to be present
func lexUserStart(l *lexer) stateFn {
	l.pos++
	l.ignore()
	return lexUser
}

// lexUser scans the user portion of a message prefix. the prefix is known to be in the fulladdress form
func lexUser(l *lexer) stateFn {
	for {
		switch r := l.next(); {
		case r == '@':
			l.backup()
			l.emit(itemUser)
			return lexHostStart
		case r == delimParam:
			return l.errorf("expected host, found end of prefix")
		case r == eof:
			return l.errorf("unexpected end of input")
		}
	}
}

// lexHostStart scans the host delimiter inside a fulladdress prefix. the @ is known to be present
func lexHostStart(l *lexer) stateFn {
	l.pos++
	l.ignore()
	return lexHost
}

// lexHost scans the host of a message prefix.
func lexHost(l *lexer) stateFn {
	for {
		switch r := l.next(); {
		case r == delimParam:
			l.backup()
			if l.pos == l.start {
				return l.errorf("empty host in prefix")
			}
			l.emit(itemHost)
			l.ignoreRun(" ")
			return lexCommand
		case r == eof:
			return l.errorf("expected command, found end of input")
		}
	}
}

func lexCommand(l *lexer) stateFn {
	for {
		switch r := l.next(); {
		case r == delimParam:
			l.backup()
			if len(l.input[l.start:l.pos]) == 0 {
				return l.errorf("unexpected end of command; command is empty")
			}
			l.emit(itemCommand)
			l.ignoreRun(" ")
			return lexParam
		case r == eof:
			if len(l.input[l.start:l.pos]) == 0 {
				return l.errorf("unexpected eof; command is empty")
			}
			l.emit(itemCommand)
			l.emit(itemEOF)
			return nil
		}
	}
}

func lexParam(l *lexer) stateFn {

	if l.peek() == startTrailing {
		return lexTrailingPrefix
	}

	for {
		switch r := l.next(); {
		case r == delimParam:
			l.backup()
			l.emit(itemParam)
			l.ignoreRun(" ")
			return lexParam
		// A trailing delimiter followed by eof emits an empty param.
		// Arguments to protocol commands rely on their position, so a parser
		// reading past what was included returns a default (empty string)
		// either way; an explicit empty param and an omitted one read the same.
		case r == eof:
			l.emit(itemParam)
			l.emit(itemEOF)
			return nil
		}
	}
}

func lexTrailingPrefix(l *lexer) stateFn {
	l.pos++
	l.ignore()
	return lexTrailing
}

// lexTrailing consumes everything remaining on the line, spaces included.
func lexTrailing(l *lexer) stateFn {
	l.pos += len(l.input[l.pos:])
	l.emit(itemTrailing)
	l.emit(itemEOF)
	return nil
}
