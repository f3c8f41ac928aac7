package service

import "errors"

var (
	// ErrNotStarted is returned by operations called before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrInvalidBinding reports a binding without scope, account or uid.
	ErrInvalidBinding = errors.New("invalid binding")
	// ErrInvalidFormat reports an unknown leaderboard output format.
	ErrInvalidFormat = errors.New("invalid output format")
)
