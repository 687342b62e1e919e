package relay

import "errors"

var (
	ErrQueueFull    = errors.New("relay: send queue full")
	ErrHandleClosed = errors.New("relay: handle closed")
)
