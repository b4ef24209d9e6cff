package protocol

import "errors"

var (
	ErrMalformedEnvelope = errors.New("malformed data message envelope")
	ErrMalformedBody     = errors.New("malformed topic body")
	ErrMalformedMetadata = errors.New("malformed room metadata")
)
