package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a request payload failed validation.
	ErrInvalidInput = errors.New("invalid input")
)
