package ledclass

import "errors"

var (
	ErrExists   = errors.New("already registered")
	ErrNotFound = errors.New("no such led")
)
