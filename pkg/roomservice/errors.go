package roomservice

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrConnectionClosed   = errors.New("room connection closed")
	ErrTrackNotPublished  = errors.New("track not published")
	ErrConnectionCanceled = errors.New("room connection canceled by user")
)
