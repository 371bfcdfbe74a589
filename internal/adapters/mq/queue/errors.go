package queue

import "errors"

// Sentinel enqueue errors.
var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)
