package client

import "errors"

var (
	ErrUnavailable     = errors.New("server unavailable")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSecurityRisk    = errors.New("security risk detected, log in again")
	ErrTooManyRequests = errors.New("too many requests")
	ErrBadRequest      = errors.New("bad request")
	ErrNoSession       = errors.New("no local session")
)
