package model

import "errors"

var (
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("not allowed to act on this resource")
	ErrNotFound    = errors.New("not found")
	ErrBlocked     = errors.New("user is blocked or has blocked you")
	ErrSelfMessage = errors.New("cannot send a message to yourself")
)
