package session

import (
	"errors"
	"fmt"
)

var (
	ErrSessionActive   = errors.New("a room session is already active")
	ErrNotConnected    = errors.New("room session is not connected")
	ErrSessionCanceled = errors.New("room session left by user")
	ErrSessionReplaced = errors.New("room session replaced")
	ErrEventStreamEnd  = errors.New("room event stream ended")
)

// Error is a background failure reported on the diagnostics channel.
type Error struct {
	Op     string
	RoomID string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("session %s [room %s]: %s", e.Op, e.RoomID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
