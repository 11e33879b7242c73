package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrAlreadyExists    = errors.New("already exists")
	ErrReadOnly         = errors.New("session is read-only")
	ErrSessionDestroyed = errors.New("session destroyed")
	ErrInvalidDocument  = errors.New("invalid document")
)
