package ircd

import "errors"

// Sentinel errors returned by registry and room operations.
// Sessions translate these into the numeric replies defined by the wire
// protocol; other callers can test for them with errors.Is.
var (
	ErrBanned           = errors.New("nickname is banned from the room")
	ErrBadKey           = errors.New("wrong or missing room password")
	ErrAlreadyMember    = errors.New("already a member of the room")
	ErrNotMember        = errors.New("not a member of the room")
	ErrRoomFull         = errors.New("the room is full")
	ErrNotOperator      = errors.New("not the room operator")
	ErrTargetIsOperator = errors.New("the room operator cannot be targeted")
	ErrAlreadyBanned    = errors.New("nickname is already banned")
	ErrNotBanned        = errors.New("nickname is not banned")
	ErrNickInUse        = errors.New("nickname is already in use")
	ErrNoSuchNick       = errors.New("no such nickname")
	ErrNoSuchRoom       = errors.New("no such room")
	ErrServerClosed     = errors.New("the server is shutting down")

	// errRoomClosed is returned by Room.Join when the room was destroyed
	// between the registry lookup and the join. The registry retries with
	// a fresh room, so the error never escapes the package.
	errRoomClosed = errors.New("the room has been destroyed")
)
