package account

import "errors"

// Account store errors
var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("no user found with these credentials")
)
