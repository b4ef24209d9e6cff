package host

import "errors"

var (
	ErrNotInLobby    = errors.New("host is not in the lobby")
	ErrNoPendingRoom = errors.New("no room selected to join")
	ErrNotInRoom     = errors.New("host is not in a room")
	ErrEmptyMessage  = errors.New("empty chat message")
)
