package wire

import "errors"

// Decode errors
var (
	ErrMalformed   = errors.New("unrecognized message format")
	ErrUnknownKind = errors.New("unrecognized message type")
)
