package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrOutOfStock        = errors.New("insufficient stock")
	ErrAlreadyMember     = errors.New("already a member of this tier")
)
