package protocol

import "errors"

var (
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	ErrMissingToken   = errors.New("protocol: missing token")
	ErrUnknownRole    = errors.New("protocol: unknown role")
)
