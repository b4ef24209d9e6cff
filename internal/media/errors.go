package media

import "errors"

var (
	ErrTrackCancelByUser = errors.New("track canceled by user")
	ErrTrackClosed       = errors.New("track closed")
	ErrSourceClosed      = errors.New("frame source closed")
)
