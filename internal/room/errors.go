package room

import "errors"

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrWatchCancelByUser   = errors.New("watch canceled by user")
)
