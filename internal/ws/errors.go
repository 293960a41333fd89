package ws

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
)
