package core

import "errors"

// ErrInvalidInput is returned when a message has no usable body or cannot be parsed
var ErrInvalidInput = errors.New("invalid input")
