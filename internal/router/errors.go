package router

import "errors"

// Routing errors. Each maps to exactly one error frame sent back to the
// originating connection; shared state is never mutated on these paths.
var (
	ErrSelfAddressed     = errors.New("cannot message yourself")
	ErrRecipientNotFound = errors.New("user not found")
	ErrNoPayload         = errors.New("no file selected")
	ErrUploadFailed      = errors.New("file upload failed")
)
