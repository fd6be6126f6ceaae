package client

import "errors"

var (
	ErrUnavailable      = errors.New("server unavailable")
	ErrTimeout          = errors.New("request timed out")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
