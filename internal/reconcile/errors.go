package reconcile

import "errors"

var (
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrSelfEcho           = errors.New("message echoed from local participant")
)
