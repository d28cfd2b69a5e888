package user

import "errors"

// Store errors shared by every credential store implementation.
var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)
