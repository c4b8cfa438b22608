package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrDecode   = errors.New("decode failed")
)
